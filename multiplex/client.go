// Package multiplex implements the multiplexed client dispatcher:
// concurrent calls are correlated by RequestId, and a response may
// complete any live call regardless of write order.
package multiplex

import (
	"fmt"
	"sync"
	"time"

	"github.com/joeycumines/go-dispatchproto/dispatcherr"
	"github.com/joeycumines/go-dispatchproto/dispatchlog"
	"github.com/joeycumines/go-dispatchproto/future"
	"github.com/joeycumines/go-dispatchproto/internal/throttle"
	"github.com/joeycumines/go-dispatchproto/service"
	"github.com/joeycumines/go-dispatchproto/task"
	"github.com/joeycumines/go-dispatchproto/transport"
)

const category = "multiplex"

type queuedCall[Req, Resp any] struct {
	id   RequestId
	req  Req
	slot *future.Slot[Resp]
}

// Client is a reactor Task and a service.Service: applications call it
// directly, or through a cloneable handle (see package client) that
// forwards onto it over a channel. Call is safe for concurrent use;
// Tick is not, and must be driven by a single owner.
type Client[Req, Resp any] struct {
	transport transport.Transport[Envelope[Req], Envelope[Resp]]

	mu       sync.Mutex
	outgoing []queuedCall[Req, Resp]
	pending  map[RequestId]*future.Slot[Resp]
	nextID   RequestId
	closed   bool // no further Call()s accepted; draining to Final

	connID   string
	logger   dispatchlog.Logger
	throttle *throttle.Limiter
}

// Option configures a Client.
type Option func(*config)

type config struct {
	connID string
	logger dispatchlog.Logger
	rates  map[time.Duration]int
}

// WithConnID attaches a connection identifier to every log Entry this
// Client emits.
func WithConnID(connID string) Option { return func(c *config) { c.connID = connID } }

// WithLogger sets the dispatchlog.Logger this Client writes to. If
// unset, dispatchlog.Default() is used.
func WithLogger(logger dispatchlog.Logger) Option { return func(c *config) { c.logger = logger } }

// WithLogThrottleRates overrides the default rate at which repeated
// diagnostic conditions are logged. Pass an empty map to disable
// throttling entirely.
func WithLogThrottleRates(rates map[time.Duration]int) Option {
	return func(c *config) { c.rates = rates }
}

// New creates a multiplex Client writing requests to, and reading
// responses from, tr.
func New[Req, Resp any](tr transport.Transport[Envelope[Req], Envelope[Resp]], opts ...Option) *Client[Req, Resp] {
	cfg := config{rates: throttle.DefaultRates}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = dispatchlog.Default()
	}
	return &Client[Req, Resp]{
		transport: tr,
		pending:   make(map[RequestId]*future.Slot[Resp]),
		connID:    cfg.connID,
		logger:    logger,
		throttle:  throttle.New(cfg.rates),
	}
}

// Call implements service.Service: it allocates a RequestId, queues the
// request for the next Tick to write, and returns a future that
// completes once the correlated response arrives. Call never blocks and
// is safe to call from any goroutine.
func (c *Client[Req, Resp]) Call(req Req) service.Future[Resp] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return service.Ready[Resp](zeroOf[Resp](), dispatcherr.ErrConnectionClosed)
	}
	id := c.nextID
	c.nextID++
	slot := future.NewSlot[Resp]()
	// The slot is not installed into pending until the request is
	// actually written: no response can correlate to an id the peer has
	// not yet seen.
	c.outgoing = append(c.outgoing, queuedCall[Req, Resp]{id: id, req: req, slot: slot})
	return slot
}

// Close stops the Client from accepting further calls. Once the
// outgoing queue drains, every pending response arrives or fails, and
// the transport is flushed, Tick reports task.Final.
func (c *Client[Req, Resp]) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Oneshot implements task.Task.
func (c *Client[Req, Resp]) Oneshot() bool { return false }

// Tick implements task.Task, performing four steps in order: flush,
// write outgoing, read responses, terminal check.
func (c *Client[Req, Resp]) Tick() (task.Tick, error) {
	flushed, err := c.transport.Flush()
	if err != nil {
		c.failAll(dispatcherr.ErrConnectionClosed)
		return task.Final, dispatcherr.WrapTransport(err)
	}

	wroteAny := false
	for c.transport.IsWritable() {
		call, ok := c.popOutgoing()
		if !ok {
			break
		}
		writable, writeErr := c.transport.Write(transport.MessageFrame(Envelope[Req]{ID: call.id, Message: call.req}))
		if writeErr != nil {
			c.failAll(dispatcherr.ErrConnectionClosed)
			return task.Final, dispatcherr.WrapTransport(writeErr)
		}
		c.installPending(call.id, call.slot)
		wroteAny = true
		if writable == transport.WriteFull {
			break
		}
	}
	if wroteAny {
		flushed, err = c.transport.Flush()
		if err != nil {
			c.failAll(dispatcherr.ErrConnectionClosed)
			return task.Final, dispatcherr.WrapTransport(err)
		}
	}

	for {
		frame, ok, readErr := c.transport.Read()
		if readErr != nil {
			c.failAll(dispatcherr.ErrConnectionClosed)
			return task.Final, dispatcherr.WrapTransport(readErr)
		}
		if !ok {
			break
		}

		switch {
		case frame.IsMessage():
			env := frame.Message
			slot, found := c.takePending(env.ID)
			if !found {
				if c.throttle.Allow(c.connID + ":unknown-id") {
					dispatchlog.Warnf(c.logger, category, c.connID, nil, "response for unknown request id %s", env.ID)
				}
				protoErr := dispatcherr.WrapProtocol(fmt.Errorf("multiplex: response for unknown request id %s", env.ID))
				c.failAll(dispatcherr.ErrConnectionClosed)
				return task.Final, protoErr
			}
			slot.Complete(env.Message, nil)

		case frame.IsDone():
			dispatchlog.Debugf(c.logger, category, c.connID, "peer closed response stream, no longer accepting calls")
			c.mu.Lock()
			c.closed = true
			c.mu.Unlock()
			c.failAll(dispatcherr.ErrConnectionClosed)

		case frame.IsError():
			wrapped := dispatcherr.WrapPeer(frame.Err)
			c.failAll(dispatcherr.ErrConnectionClosed)
			return task.Final, wrapped
		}
	}

	c.mu.Lock()
	closed := c.closed
	outgoingEmpty := len(c.outgoing) == 0
	pendingEmpty := len(c.pending) == 0
	c.mu.Unlock()

	if closed && outgoingEmpty && pendingEmpty && flushed {
		dispatchlog.Debugf(c.logger, category, c.connID, "multiplex client finished: drained and closed")
		return task.Final, nil
	}
	return task.WouldBlock, nil
}

func (c *Client[Req, Resp]) popOutgoing() (queuedCall[Req, Resp], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.outgoing) == 0 {
		return queuedCall[Req, Resp]{}, false
	}
	call := c.outgoing[0]
	c.outgoing = c.outgoing[1:]
	return call, true
}

func (c *Client[Req, Resp]) installPending(id RequestId, slot *future.Slot[Resp]) {
	c.mu.Lock()
	c.pending[id] = slot
	c.mu.Unlock()
}

func (c *Client[Req, Resp]) takePending(id RequestId) (*future.Slot[Resp], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	slot, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	return slot, ok
}

// failAll completes every currently pending slot with err. It is called
// on every fatal exit path and on peer-initiated shutdown, so no caller
// is left waiting forever.
func (c *Client[Req, Resp]) failAll(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[RequestId]*future.Slot[Resp])
	c.closed = true
	c.mu.Unlock()
	for _, slot := range pending {
		var zero Resp
		slot.Complete(zero, err)
	}
}

func zeroOf[T any]() T {
	var zero T
	return zero
}

var _ service.Service[int, int] = (*Client[int, int])(nil)
var _ task.Task = (*Client[int, int])(nil)
