// Package inflight holds the bounded, ordered collection of pending
// response futures each dispatcher drains from: a FIFO ring for the
// pipeline dispatcher (order IS the identifier), and a keyed map for
// the multiplex dispatcher (order doesn't matter, RequestId does).
package inflight

import (
	"fmt"

	"github.com/joeycumines/go-dispatchproto/service"
)

// DefaultCapacity is the capacity a Server or Client falls back to when
// none is given explicitly.
const DefaultCapacity = 16

// FIFO is a fixed-capacity ring buffer of pending service.Future values,
// polled strictly in push order: Poll only ever inspects the head, so a
// future that resolves out of order is held until everything pushed
// before it has drained. This is what gives pipelining its
// response-order guarantee.
//
// FIFO is not safe for concurrent use; it is owned exclusively by the
// single dispatcher Tick loop that drives it.
type FIFO[Resp any] struct {
	buf  []service.Future[Resp]
	head int
	size int
}

// NewFIFO creates an empty FIFO with the given capacity, rounded up to
// the next power of two so the index arithmetic can use a bitmask
// instead of a modulo. A non-positive capacity falls back to
// DefaultCapacity; an explicit small capacity (as used to exercise
// backpressure) is otherwise honored as given.
func NewFIFO[Resp any](capacity int) *FIFO[Resp] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &FIFO[Resp]{buf: make([]service.Future[Resp], nextPow2(capacity))}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func (q *FIFO[Resp]) mask(i int) int { return i & (len(q.buf) - 1) }

// Len reports how many futures are currently queued.
func (q *FIFO[Resp]) Len() int { return q.size }

// Cap reports the queue's fixed capacity.
func (q *FIFO[Resp]) Cap() int { return len(q.buf) }

// IsEmpty reports whether the queue holds no futures.
func (q *FIFO[Resp]) IsEmpty() bool { return q.size == 0 }

// ErrFull is returned by Push when the queue is already at capacity.
// Dispatchers treat it as a signal to stop reading until the queue
// drains, not as a connection-fatal error.
type ErrFull struct{ Capacity int }

func (e *ErrFull) Error() string {
	return fmt.Sprintf("inflight: fifo at capacity (%d)", e.Capacity)
}

// Push appends fut to the tail of the queue. It returns *ErrFull if the
// queue is already at capacity.
func (q *FIFO[Resp]) Push(fut service.Future[Resp]) error {
	if q.size == len(q.buf) {
		return &ErrFull{Capacity: len(q.buf)}
	}
	q.buf[q.mask(q.head+q.size)] = fut
	q.size++
	return nil
}

// Poll inspects the head future only. If it has resolved successfully,
// Poll removes and returns it (resp, nil, true). If it has resolved with
// an error, Poll removes it and returns (zero, err, true). If the head
// is still pending, or the queue is empty, Poll returns (zero, nil,
// false) and leaves the queue unchanged.
func (q *FIFO[Resp]) Poll() (resp Resp, err error, ready bool) {
	if q.size == 0 {
		return resp, nil, false
	}
	head := q.buf[q.mask(q.head)]
	resp, ready, err = head.Poll()
	if !ready {
		var zero Resp
		return zero, nil, false
	}
	q.buf[q.mask(q.head)] = nil
	q.head = q.mask(q.head + 1)
	q.size--
	return resp, err, true
}
