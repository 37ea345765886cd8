package fiber

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/omni-lang/omni/internal/runtime"
)

// Scheduler implements a with_fibers scope (§4.6): cooperative,
// single-threaded-per-scope, with a FIFO ready order over its fibers.
// Tier 2 concurrency within one Scheduler is bounded to exactly one
// runnable fiber at a time by sem; see the package doc for why a
// semaphore of weight one stands in for the spec's stack-switch.
type Scheduler struct {
	sem *semaphore.Weighted
	grp *errgroup.Group
	ctx context.Context

	nextID atomic.Uint64

	mu     sync.Mutex
	fibers []*Fiber
}

// NewScheduler implements with_fibers's scope setup. The supplied ctx
// bounds how long a fiber may wait for its turn or for a blocking channel
// op; cancelling it is a coarse, scope-wide escape hatch distinct from
// per-fiber Cancel.
func NewScheduler(ctx context.Context) *Scheduler {
	grp, gctx := errgroup.WithContext(ctx)
	return &Scheduler{sem: semaphore.NewWeighted(1), grp: grp, ctx: gctx}
}

func (s *Scheduler) relinquish()                 { s.sem.Release(1) }
func (s *Scheduler) reacquire(ctx context.Context) { _ = s.sem.Acquire(ctx, 1) }

// Spawn implements spawn_fiber(closure): creates a fiber, enters it into
// the scheduler's FIFO ready queue (the semaphore's own internal waiter
// list, which grants acquisitions in arrival order), and returns its
// handle immediately without waiting for it to run.
func (s *Scheduler) Spawn(fn Func) *Fiber {
	f := &Fiber{
		id:        s.nextID.Add(1),
		scheduler: s,
		done:      make(chan struct{}),
	}
	s.mu.Lock()
	s.fibers = append(s.fibers, f)
	s.mu.Unlock()

	s.grp.Go(func() error {
		if err := s.sem.Acquire(s.ctx, 1); err != nil {
			f.finish(runtime.NewError("cancelled"))
			return nil
		}
		defer s.sem.Release(1)

		f.state.Store(int32(StateRunning))
		f.observeCancellation()

		result := fn(f)
		f.finish(result)
		return nil
	})
	return f
}

// Join implements fiber_join(f): blocks the caller until f completes,
// returning its cached result (subsequent joins see the same cached
// value, §4.6).
func Join(f *Fiber) runtime.Value {
	<-f.done
	f.resultMu.Lock()
	defer f.resultMu.Unlock()
	return f.result
}

// Drain implements with_fibers's scope-exit behaviour: blocks until every
// fiber spawned on this scheduler has run to completion.
func (s *Scheduler) Drain() error {
	return s.grp.Wait()
}

// Fibers returns a snapshot of every fiber spawned on this scheduler, for
// introspection/testing.
func (s *Scheduler) Fibers() []*Fiber {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Fiber, len(s.fibers))
	copy(out, s.fibers)
	return out
}
