// Package grpcframe implements a transport.Transport over a
// length-delimited protobuf wire format: every frame is a
// varint-prefixed google.protobuf.Any, the same "envelope carries a
// typed payload" shape fangrpcstream.Stream wraps around a live gRPC
// stream, but written directly to an io.Reader/io.Writer so it needs no
// generated service stubs.
//
// The Done and Error variants are represented with well-known types
// (emptypb.Empty, wrapperspb.StringValue) packed into the same Any
// envelope as ordinary payloads, so no project-specific .proto schema
// is required for the envelope itself.
package grpcframe

import (
	"bufio"
	"encoding/binary"
	"io"
	"sync"
	"sync/atomic"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joeycumines/go-dispatchproto/transport"
)

// DefaultReadAhead bounds how many decoded frames the background reader
// may buffer ahead of the dispatcher consuming them.
const DefaultReadAhead = 64

// DefaultWriteBacklog bounds how many frames may be buffered, unflushed,
// before Write reports transport.WriteFull.
const DefaultWriteBacklog = 64

// Codec adapts an io.Reader/io.Writer pair into a transport.Transport
// carrying In protobuf messages out and Out protobuf messages in.
// newOut must return a freshly allocated zero value of the concrete Out
// message type, the way a generated gRPC client's response factory
// does, since Go generics cannot allocate one from the type parameter
// alone.
type Codec[In, Out proto.Message] struct {
	newOut func() Out

	w             *bufio.Writer
	writeBacklog  int
	pendingWrites int

	decoded chan transport.Frame[Out]
	readErr atomic.Pointer[error]

	closer    io.Closer
	closeOnce sync.Once
}

// New builds a Codec reading framed Out messages from r and writing
// framed In messages to w.
func New[In, Out proto.Message](r io.Reader, w io.Writer, newOut func() Out) *Codec[In, Out] {
	c := &Codec[In, Out]{
		newOut:       newOut,
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
		n, err := binary.ReadUvarint(r)
		if err != nil {
			if err != io.EOF {
				c.setReadErr(err)
			}
			return
		}

		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			c.setReadErr(err)
			return
		}

		frame, err := c.decodeFrame(buf)
		if err != nil {
			c.setReadErr(err)
			return
		}
		c.decoded <- frame
	}
}

func (c *Codec[In, Out]) decodeFrame(buf []byte) (transport.Frame[Out], error) {
	var env anypb.Any
	if err := proto.Unmarshal(buf, &env); err != nil {
		return transport.Frame[Out]{}, err
	}

	switch {
	case env.MessageIs(&emptypb.Empty{}):
		return transport.DoneFrame[Out](), nil

	case env.MessageIs(&wrapperspb.StringValue{}):
		var sv wrapperspb.StringValue
		if err := env.UnmarshalTo(&sv); err != nil {
			return transport.Frame[Out]{}, err
		}
		return transport.ErrorFrame[Out](errString(sv.Value)), nil

	default:
		out := c.newOut()
		if err := env.UnmarshalTo(out); err != nil {
			return transport.Frame[Out]{}, err
		}
		return transport.MessageFrame(out), nil
	}
}

type errString string

func (e errString) Error() string { return string(e) }

func (c *Codec[In, Out]) setReadErr(err error) { c.readErr.Store(&err) }

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

// Write implements transport.Transport, buffering a length-delimited
// Any-wrapped frame without flushing to the wire.
func (c *Codec[In, Out]) Write(frame transport.Frame[In]) (transport.Writable, error) {
	var packed *anypb.Any
	var err error
	switch frame.Kind {
	case transport.KindMessage:
		packed, err = anypb.New(frame.Message)
	case transport.KindDone:
		packed, err = anypb.New(&emptypb.Empty{})
	case transport.KindError:
		msg := ""
		if frame.Err != nil {
			msg = frame.Err.Error()
		}
		packed, err = anypb.New(wrapperspb.String(msg))
	}
	if err != nil {
		return transport.WriteReady, err
	}

	encoded, err := proto.Marshal(packed)
	if err != nil {
		return transport.WriteReady, err
	}

	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(encoded)))
	if _, err := c.w.Write(lenBuf[:n]); err != nil {
		return transport.WriteReady, err
	}
	if _, err := c.w.Write(encoded); err != nil {
		return transport.WriteReady, err
	}

	c.pendingWrites++
	if c.pendingWrites >= c.writeBacklog {
		return transport.WriteFull, nil
	}
	return transport.WriteReady, nil
}

// Flush implements transport.Transport.
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
