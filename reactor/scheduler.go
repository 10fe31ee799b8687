// Package reactor hosts dispatcher Tasks to completion. A dispatcher
// itself never blocks or sleeps; something above it has to decide when
// to call Tick again after a WouldBlock. This package's Scheduler does
// that with one goroutine per Task, backing off briefly between
// WouldBlock results, and joins every spawned Task with
// golang.org/x/sync/errgroup the same way an event loop joins its
// registered tasks, minus the raw epoll/kqueue poller: a real reactor's
// readiness-driven wakeups are the external collaborator this runtime
// assumes, not something this package reimplements at the syscall
// level.
package reactor

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joeycumines/go-dispatchproto/dispatchlog"
	"github.com/joeycumines/go-dispatchproto/task"
)

const category = "reactor"

// DefaultIdleBackoff is how long a Task's goroutine sleeps after a
// WouldBlock before calling Tick again, when the Task itself offers no
// cheaper readiness signal.
const DefaultIdleBackoff = time.Millisecond

// Scheduler runs Tasks to completion concurrently, one goroutine each,
// and aggregates their errors. The zero value is not usable; construct
// one with New.
type Scheduler struct {
	ctx         context.Context
	group       *errgroup.Group
	idleBackoff time.Duration
	logger      dispatchlog.Logger
}

// Option configures a Scheduler.
type Option func(*config)

type config struct {
	idleBackoff time.Duration
	logger      dispatchlog.Logger
}

// WithIdleBackoff overrides DefaultIdleBackoff.
func WithIdleBackoff(d time.Duration) Option { return func(c *config) { c.idleBackoff = d } }

// WithLogger sets the dispatchlog.Logger the Scheduler writes to.
func WithLogger(logger dispatchlog.Logger) Option { return func(c *config) { c.logger = logger } }

// New creates a Scheduler bound to ctx: cancelling ctx, or any spawned
// Task returning a non-nil error, cancels every other Task's context by
// way of errgroup.WithContext.
func New(ctx context.Context, opts ...Option) *Scheduler {
	cfg := config{idleBackoff: DefaultIdleBackoff}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = dispatchlog.Default()
	}
	group, groupCtx := errgroup.WithContext(ctx)
	return &Scheduler{ctx: groupCtx, group: group, idleBackoff: cfg.idleBackoff, logger: logger}
}

// Spawn runs t to completion on its own goroutine, driving Tick
// repeatedly until it reports task.Final or returns an error.
func (s *Scheduler) Spawn(t task.Task) {
	s.group.Go(func() error {
		return s.run(t)
	})
}

// SpawnFactory builds a Task from conn via factory and spawns it. It is
// a free function, not a Scheduler method, since the connection type C
// is independent of Scheduler's own (non-generic) state.
func SpawnFactory[C any](s *Scheduler, conn C, factory task.Factory[C]) error {
	t, err := factory.NewTask(conn)
	if err != nil {
		return err
	}
	s.Spawn(t)
	return nil
}

func (s *Scheduler) run(t task.Task) error {
	timer := time.NewTimer(s.idleBackoff)
	defer timer.Stop()
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-s.ctx.Done():
			return s.ctx.Err()
		default:
		}

		tick, err := t.Tick()
		if err != nil {
			dispatchlog.Errorf(s.logger, category, "", err, "task ended with error")
			return err
		}

		switch tick {
		case task.Final:
			return nil

		case task.Yield:
			runtime.Gosched()

		case task.WouldBlock:
			timer.Reset(s.idleBackoff)
			select {
			case <-s.ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				return s.ctx.Err()
			case <-timer.C:
			}
		}
	}
}

// Wait blocks until every spawned Task has finished, returning the
// first non-nil error any of them produced.
func (s *Scheduler) Wait() error {
	return s.group.Wait()
}
