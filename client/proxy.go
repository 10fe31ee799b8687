// Package client provides the application-facing handle for a
// multiplex dispatcher: a cloneable Proxy whose Call blocks the calling
// goroutine (not the reactor) until a response arrives, suitable for
// ordinary request/response application code that doesn't want to poll
// a service.Future itself.
package client

import (
	"context"
	"time"

	"github.com/joeycumines/go-dispatchproto/future"
	"github.com/joeycumines/go-dispatchproto/multiplex"
	"github.com/joeycumines/go-dispatchproto/service"
)

// submission is one item carried over a Proxy's MPSC channel: a request
// plus a one-shot channel the forwarding goroutine uses to hand back
// the future.Slot it got from the underlying dispatcher.
type submission[Req, Resp any] struct {
	req      Req
	futureCh chan service.Future[Resp]
}

// defaultQueueDepth bounds how many in-flight Call submissions a Proxy
// tree can have queued waiting for the forwarding goroutine, before
// Call starts blocking the caller on send.
const defaultQueueDepth = 64

// Proxy is a cloneable client handle for a multiplex.Client. All clones
// of a Proxy share one underlying dispatcher and serialize their calls
// onto it through a single internal multi-producer, single-consumer
// channel.
//
// The zero value is not usable; construct one with New.
type Proxy[Req, Resp any] struct {
	submit chan submission[Req, Resp]
}

// New builds a Proxy fronting c. It starts one forwarding goroutine that
// lives until c's dispatcher is driven to completion and no further
// submissions arrive; Proxy itself never shuts that goroutine down
// explicitly, matching multiplex.Client's own Close/drain lifecycle.
func New[Req, Resp any](c *multiplex.Client[Req, Resp]) *Proxy[Req, Resp] {
	submit := make(chan submission[Req, Resp], defaultQueueDepth)
	go forward(c, submit)
	return &Proxy[Req, Resp]{submit: submit}
}

func forward[Req, Resp any](c *multiplex.Client[Req, Resp], submit <-chan submission[Req, Resp]) {
	for s := range submit {
		s.futureCh <- c.Call(s.req)
	}
}

// Clone returns an independent handle sharing this Proxy's underlying
// dispatcher and submission channel.
func (p *Proxy[Req, Resp]) Clone() *Proxy[Req, Resp] {
	return &Proxy[Req, Resp]{submit: p.submit}
}

// Call submits req to the underlying dispatcher and blocks until its
// response arrives, ctx is done, or the dispatcher shuts down. It is
// safe to call concurrently from any goroutine, on any clone.
func (p *Proxy[Req, Resp]) Call(ctx context.Context, req Req) (Resp, error) {
	futureCh := make(chan service.Future[Resp], 1)
	select {
	case p.submit <- submission[Req, Resp]{req: req, futureCh: futureCh}:
	case <-ctx.Done():
		var zero Resp
		return zero, ctx.Err()
	}

	select {
	case fut := <-futureCh:
		return waitFuture(ctx, fut)
	case <-ctx.Done():
		var zero Resp
		return zero, ctx.Err()
	}
}

// waitFuture blocks until fut settles or ctx is done. A future.Slot (the
// only future multiplex.Client ever actually hands back) waits
// efficiently on its done channel; any other service.Future
// implementation falls back to polling, per its documented contract.
func waitFuture[Resp any](ctx context.Context, fut service.Future[Resp]) (Resp, error) {
	if slot, ok := fut.(*future.Slot[Resp]); ok {
		return slot.Wait(ctx)
	}

	if resp, ready, err := fut.Poll(); ready {
		return resp, err
	}

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			var zero Resp
			return zero, ctx.Err()
		case <-ticker.C:
			if resp, ready, err := fut.Poll(); ready {
				return resp, err
			}
		}
	}
}
