// Package future provides the one-shot completion cell used to hand a
// result from a dispatcher to whatever is waiting on it: a single
// producer (the dispatcher) completes the cell exactly once; any number
// of consumers may poll or wait on it afterward.
package future

import (
	"context"
	"sync"
)

// Slot is a single-producer, multi-consumer completion cell. The zero
// value is not usable; construct one with NewSlot.
//
// The dispatcher owns the write end (Complete). The caller owns the read
// end (Poll, Wait). A Slot implements the Poll half of
// github.com/joeycumines/go-dispatchproto/service.Future.
type Slot[T any] struct {
	done chan struct{}
	mu   sync.Mutex
	val  T
	err  error
}

// NewSlot creates an empty, pending Slot.
func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{done: make(chan struct{})}
}

// Complete settles the slot with val, err. Only the first call has any
// effect; subsequent calls are silently ignored, since a Slot has a
// single producer by contract and settling twice would indicate a bug
// in the caller, not a condition callers need to react to.
func (s *Slot[T]) Complete(val T, err error) {
	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		return
	default:
	}
	s.val, s.err = val, err
	close(s.done)
	s.mu.Unlock()
}

// Poll implements service.Future: non-blocking, reports ready == true
// once Complete has been called.
func (s *Slot[T]) Poll() (val T, ready bool, err error) {
	select {
	case <-s.done:
		s.mu.Lock()
		val, err = s.val, s.err
		s.mu.Unlock()
		return val, true, err
	default:
		var zero T
		return zero, false, nil
	}
}

// Wait blocks until the slot is settled or ctx is done, whichever comes
// first. It is the blocking counterpart to Poll, for callers that are
// not themselves running on a reactor thread (e.g. application code
// awaiting a client.Proxy call).
func (s *Slot[T]) Wait(ctx context.Context) (val T, err error) {
	select {
	case <-s.done:
		s.mu.Lock()
		val, err = s.val, s.err
		s.mu.Unlock()
		return val, err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel closed once the slot settles, for callers that
// want to select on it alongside other channels directly.
func (s *Slot[T]) Done() <-chan struct{} {
	return s.done
}
