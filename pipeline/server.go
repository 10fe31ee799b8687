// Package pipeline implements the pipelined server dispatcher: requests
// are processed concurrently, but responses are written to the
// transport in strict request-arrival order.
package pipeline

import (
	"time"

	"github.com/joeycumines/go-dispatchproto/dispatcherr"
	"github.com/joeycumines/go-dispatchproto/dispatchlog"
	"github.com/joeycumines/go-dispatchproto/inflight"
	"github.com/joeycumines/go-dispatchproto/internal/throttle"
	"github.com/joeycumines/go-dispatchproto/service"
	"github.com/joeycumines/go-dispatchproto/task"
	"github.com/joeycumines/go-dispatchproto/transport"
)

const category = "pipeline"

// Server is a reactor Task that dispatches Transport messages to a
// Service under pipelining: one outstanding response per request,
// responses written in FIFO order regardless of completion order.
//
// Server implements task.Task. Construct one with New.
type Server[Req, Resp any] struct {
	accepting bool
	service   service.Service[Req, Resp]
	transport transport.Transport[Resp, Req]
	inFlight  *inflight.FIFO[Resp]

	connID   string
	logger   dispatchlog.Logger
	throttle *throttle.Limiter
}

// Option configures a Server.
type Option[Req, Resp any] func(*config)

type config struct {
	capacity int
	connID   string
	logger   dispatchlog.Logger
	rates    map[time.Duration]int
}

// WithCapacity sets the in-flight queue's capacity. Below
// inflight.DefaultCapacity is raised to it.
func WithCapacity[Req, Resp any](capacity int) Option[Req, Resp] {
	return func(c *config) { c.capacity = capacity }
}

// WithConnID attaches a connection identifier to every log Entry this
// Server emits, for correlating a dispatcher's log lines across a busy
// reactor hosting many connections.
func WithConnID[Req, Resp any](connID string) Option[Req, Resp] {
	return func(c *config) { c.connID = connID }
}

// WithLogger sets the dispatchlog.Logger this Server writes to. If
// unset, dispatchlog.Default() is used.
func WithLogger[Req, Resp any](logger dispatchlog.Logger) Option[Req, Resp] {
	return func(c *config) { c.logger = logger }
}

// WithLogThrottleRates overrides the default rate at which repeated
// diagnostic conditions (queue-full back-off) are logged. Pass an empty
// map to disable throttling entirely.
func WithLogThrottleRates[Req, Resp any](rates map[time.Duration]int) Option[Req, Resp] {
	return func(c *config) { c.rates = rates }
}

// New creates a pipeline Server dispatching to svc over tr.
func New[Req, Resp any](svc service.Service[Req, Resp], tr transport.Transport[Resp, Req], opts ...Option[Req, Resp]) *Server[Req, Resp] {
	cfg := config{capacity: inflight.DefaultCapacity, rates: throttle.DefaultRates}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = dispatchlog.Default()
	}
	return &Server[Req, Resp]{
		accepting: true,
		service:   svc,
		transport: tr,
		inFlight:  inflight.NewFIFO[Resp](cfg.capacity),
		connID:    cfg.connID,
		logger:    logger,
		throttle:  throttle.New(cfg.rates),
	}
}

// Oneshot implements task.Task. A pipeline Server always needs readiness
// tracking across at least one round trip, so it is never a oneshot.
func (s *Server[Req, Resp]) Oneshot() bool { return false }

// Tick implements task.Task, performing four steps in order: flush,
// drain, ingest, terminal check.
func (s *Server[Req, Resp]) Tick() (task.Tick, error) {
	// 1. Flush first: bound write-buffer growth when responses are
	// produced faster than the socket accepts them.
	flushed, err := s.transport.Flush()
	if err != nil {
		return task.Final, dispatcherr.WrapTransport(err)
	}

	// 2. Drain ready responses, in push order, stopping the instant the
	// transport can't take another write (Open Question #2: retry next
	// Tick rather than spin).
	wroteAny := false
	for s.transport.IsWritable() {
		resp, serviceErr, ready := s.inFlight.Poll()
		if !ready {
			break
		}

		var frame transport.Frame[Resp]
		if serviceErr != nil {
			// Open Question #1: a failed service future is not
			// connection-fatal; it is routed through the response
			// frame path as a ServiceError, occupying this request's
			// FIFO position like any other response would.
			wrapped := dispatcherr.WrapService(serviceErr)
			dispatchlog.Warnf(s.logger, category, s.connID, wrapped, "service future failed, responding with error frame")
			frame = transport.ErrorFrame[Resp](wrapped)
		} else {
			frame = transport.MessageFrame(resp)
		}

		writable, writeErr := s.transport.Write(frame)
		if writeErr != nil {
			return task.Final, dispatcherr.WrapTransport(writeErr)
		}
		wroteAny = true
		if writable == transport.WriteFull {
			break
		}
	}
	if wroteAny {
		flushed, err = s.transport.Flush()
		if err != nil {
			return task.Final, dispatcherr.WrapTransport(err)
		}
	}

	// 3. Ingest new requests, as long as the server is accepting and the
	// in-flight queue has room (backpressure: stop reading, not
	// rejecting, when saturated).
	for s.accepting && s.inFlight.Len() < s.inFlight.Cap() {
		frame, ok, readErr := s.transport.Read()
		if readErr != nil {
			return task.Final, dispatcherr.WrapTransport(readErr)
		}
		if !ok {
			break
		}

		switch {
		case frame.IsMessage():
			fut := s.service.Call(frame.Message)
			if pushErr := s.inFlight.Push(fut); pushErr != nil {
				// Capacity was checked above; this would only trip on
				// a race within a single-threaded Tick, which can't
				// happen, but fail safe rather than panic.
				return task.Final, pushErr
			}
		case frame.IsDone():
			dispatchlog.Debugf(s.logger, category, s.connID, "peer sent Done, no longer accepting requests")
			s.accepting = false
		case frame.IsError():
			return task.Final, dispatcherr.WrapPeer(frame.Err)
		}
	}
	if s.inFlight.Len() >= s.inFlight.Cap() && s.throttle.Allow(s.connID+":capacity") {
		dispatchlog.Debugf(s.logger, category, s.connID, "in-flight queue at capacity (%d), pausing reads", s.inFlight.Cap())
	}

	// 4. Terminal check: all three shutdown axes favorable.
	if !s.accepting && flushed && s.inFlight.IsEmpty() {
		dispatchlog.Debugf(s.logger, category, s.connID, "pipeline server finished: drained and half-closed")
		return task.Final, nil
	}
	return task.WouldBlock, nil
}
