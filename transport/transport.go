package transport

// Writable reports whether a Transport's write side can accept another
// frame without blocking, the signal Write returns so a dispatcher knows
// whether to keep draining or back off until the next Tick.
type Writable int

const (
	// WriteReady indicates the write buffer has room for another frame.
	WriteReady Writable = iota

	// WriteFull indicates the write buffer is now full; the caller must
	// stop writing until a subsequent Flush or readiness event.
	WriteFull
)

// Transport is a non-blocking framed duplex of typed messages. In is
// what the local side writes; Out is what it reads.
//
// Read and Write are independent: either may report not-ready while the
// other proceeds. Flush is idempotent. Once Read returns a KindDone
// Frame, subsequent Read calls must keep reporting would-block (ok ==
// false, err == nil) rather than erroring; Write remains valid
// indefinitely, since a half-closed peer may still be waiting on
// responses.
type Transport[In, Out any] interface {
	// Read returns the next complete frame if one is buffered (ok ==
	// true), reports would-block via ok == false with a nil error, or
	// returns a non-nil error on an irrecoverable transport failure.
	Read() (frame Frame[Out], ok bool, err error)

	// Write best-effort enqueues a frame to the internal write buffer.
	// The returned Writable indicates whether another Write may be
	// attempted immediately. A non-nil error is an irrecoverable
	// transport failure; the write buffer's state is then undefined.
	Write(frame Frame[In]) (Writable, error)

	// Flush pushes buffered bytes to the underlying I/O. drained is true
	// once the buffer is fully drained by this call, false if bytes
	// remain pending. Flush is safe to call repeatedly with no external
	// activity between calls ("idempotent": calling it twice in a row
	// performs a second flush attempt but causes no further state
	// change beyond what the first call already achieved).
	Flush() (drained bool, err error)

	// IsWritable is a cheap query: may Write accept another frame right
	// now without blocking?
	IsWritable() bool
}
