// Package jsonframe implements a transport.Transport over a
// newline-delimited JSON wire format, grounded on
// dwarri-gazette/message's JSONFraming (bufio.Reader/Writer plus
// encoding/json, one record per line).
//
// Reads happen on a background goroutine, since the underlying
// bufio.Reader blocks; decoded frames are handed to the dispatcher's
// Tick loop through a buffered channel so Read itself never blocks.
// Writes are buffered synchronously and only reach the wire on Flush.
package jsonframe

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-dispatchproto/transport"
)

// DefaultReadAhead bounds how many decoded frames the background reader
// may buffer ahead of the dispatcher consuming them.
const DefaultReadAhead = 64

// DefaultWriteBacklog bounds how many frames may be buffered, unflushed,
// before Write reports transport.WriteFull.
const DefaultWriteBacklog = 64

// wireFrame is the line-delimited JSON envelope. Exactly one of Message
// or Error is populated, mirroring transport.Frame's own invariant.
type wireFrame[M any] struct {
	Kind    string `json:"kind"`
	Message *M     `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Codec adapts an io.Reader/io.Writer pair into a transport.Transport
// carrying In frames out and Out frames in.
type Codec[In, Out any] struct {
	w             *bufio.Writer
	writeBacklog  int
	pendingWrites int

	decoded chan transport.Frame[Out]
	readErr atomic.Pointer[error]

	closer    io.Closer
	closeOnce sync.Once
}

// New builds a Codec reading framed Out values from r and writing
// framed In values to w. If rwc also implements io.Closer, Close
// releases it; otherwise Close is a no-op beyond stopping the reader
// goroutine.
func New[In, Out any](r io.Reader, w io.Writer) *Codec[In, Out] {
	c := &Codec[In, Out]{
		w:            bufio.NewWriter(w),
		writeBacklog: DefaultWriteBacklog,
		decoded:      make(chan transport.Frame[Out], DefaultReadAhead),
	}
	if closer, ok := r.(io.Closer); ok {
		c.closer = closer
	}
	go c.readLoop(bufio.NewReader(r))
	return c
}

func (c *Codec[In, Out]) readLoop(r *bufio.Reader) {
	defer close(c.decoded)
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			if frame, decodeErr := decodeLine[Out](line); decodeErr != nil {
				c.setReadErr(decodeErr)
				return
			} else {
				c.decoded <- frame
			}
		}
		if err != nil {
			if err != io.EOF {
				c.setReadErr(err)
			}
			return
		}
	}
}

func decodeLine[Out any](line []byte) (transport.Frame[Out], error) {
	line = bytes.TrimRight(line, "\n")
	var wire wireFrame[Out]
	if err := json.Unmarshal(line, &wire); err != nil {
		return transport.Frame[Out]{}, err
	}
	switch wire.Kind {
	case "message":
		if wire.Message == nil {
			var zero Out
			return transport.MessageFrame(zero), nil
		}
		return transport.MessageFrame(*wire.Message), nil
	case "done":
		return transport.DoneFrame[Out](), nil
	case "error":
		return transport.ErrorFrame[Out](errString(wire.Error)), nil
	default:
		return transport.Frame[Out]{}, &UnknownKindError{Kind: wire.Kind}
	}
}

// UnknownKindError is returned when a decoded line names a kind other
// than "message", "done", or "error".
type UnknownKindError struct{ Kind string }

func (e *UnknownKindError) Error() string { return "jsonframe: unknown frame kind " + e.Kind }

type errString string

func (e errString) Error() string { return string(e) }

func (c *Codec[In, Out]) setReadErr(err error) {
	c.readErr.Store(&err)
}

// Read implements transport.Transport.
func (c *Codec[In, Out]) Read() (transport.Frame[Out], bool, error) {
	select {
	case frame, ok := <-c.decoded:
		if !ok {
			if p := c.readErr.Load(); p != nil {
				return transport.Frame[Out]{}, false, *p
			}
			return transport.Frame[Out]{}, false, nil
		}
		return frame, true, nil
	default:
		return transport.Frame[Out]{}, false, nil
	}
}

// Write implements transport.Transport: it buffers a JSON line via the
// underlying bufio.Writer without flushing to the wire.
func (c *Codec[In, Out]) Write(frame transport.Frame[In]) (transport.Writable, error) {
	wire := wireFrame[In]{}
	switch frame.Kind {
	case transport.KindMessage:
		wire.Kind = "message"
		wire.Message = &frame.Message
	case transport.KindDone:
		wire.Kind = "done"
	case transport.KindError:
		wire.Kind = "error"
		if frame.Err != nil {
			wire.Error = frame.Err.Error()
		}
	}

	encoded, err := json.Marshal(wire)
	if err != nil {
		return transport.WriteReady, err
	}
	if _, err := c.w.Write(encoded); err != nil {
		return transport.WriteReady, err
	}
	if err := c.w.WriteByte('\n'); err != nil {
		return transport.WriteReady, err
	}

	c.pendingWrites++
	if c.pendingWrites >= c.writeBacklog {
		return transport.WriteFull, nil
	}
	return transport.WriteReady, nil
}

// Flush implements transport.Transport, pushing buffered lines to the
// underlying writer.
func (c *Codec[In, Out]) Flush() (bool, error) {
	if err := c.w.Flush(); err != nil {
		return false, err
	}
	c.pendingWrites = 0
	return true, nil
}

// IsWritable implements transport.Transport.
func (c *Codec[In, Out]) IsWritable() bool {
	return c.pendingWrites < c.writeBacklog
}

// Close releases the underlying reader, if it implements io.Closer.
func (c *Codec[In, Out]) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.closer != nil {
			err = c.closer.Close()
		}
	})
	return err
}

var _ transport.Transport[int, int] = (*Codec[int, int])(nil)
