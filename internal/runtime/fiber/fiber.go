// Package fiber implements the two-tier concurrency layer (§4.6, §4.9):
// Tier 1 OS threads via spawn_thread, and Tier 2 cooperative fibers,
// many of which share a scheduler scope and take turns running.
//
// Go gives no portable stack-switch primitive (setjmp/longjmp and
// friends are exactly what the spec's own §9 "Open Questions" anticipates
// a port substituting), so each fiber here is its own goroutine, and
// "one fiber runs at a time per scheduler scope" is enforced with a
// weighted semaphore of capacity one instead of an explicit context
// save/restore. Suspension points (Yield, a blocking channel op, Join)
// release the semaphore before blocking and reacquire it on the way back
// in, which reproduces the spec's externally visible contract — one
// scheduler per scope, FIFO ready order, suspension only at documented
// points — without requiring a real stack switch.
package fiber

import (
	"sync"
	"sync/atomic"

	goruntime "runtime"

	"github.com/omni-lang/omni/internal/runtime"
)

type State int32

const (
	StateReady State = iota
	StateRunning
	StateBlocked
	StateDone
	StateCancelled
)

// Func is the body a fiber runs. It receives the Fiber itself so it can
// call Yield, or hand itself to the channel helpers in ops.go, without
// relying on goroutine-local state Go does not provide.
type Func func(f *Fiber) runtime.Value

// Fiber is a cooperative task: its own (goroutine) stack, current
// suspension state, join-waiters, and a cached result (§3).
type Fiber struct {
	id        uint64
	scheduler *Scheduler

	state      atomic.Int32
	cancelFlag atomic.Bool

	resultMu sync.Mutex
	result   runtime.Value

	done chan struct{}
}

// ID returns the fiber's scheduler-assigned identity.
func (f *Fiber) ID() uint64 { return f.id }

// State returns the fiber's current scheduling state.
func (f *Fiber) State() State { return State(f.state.Load()) }

// Cancel implements the cooperative cancellation flag (§4.6): the next
// suspension point observes it and terminates the fiber with a
// cancellation marker as its result, rather than forcing interruption.
func (f *Fiber) Cancel() { f.cancelFlag.Store(true) }

func (f *Fiber) cancelled() bool { return f.cancelFlag.Load() }

// Yield implements fiber_yield (§4.6): suspends the current fiber back to
// the scheduler, letting the next ready fiber (FIFO) take a turn, then
// blocks until this fiber is scheduled again.
func (f *Fiber) Yield() {
	f.state.Store(int32(StateReady))
	f.scheduler.relinquish()
	f.scheduler.reacquire(f.scheduler.ctx)
	f.state.Store(int32(StateRunning))
	f.observeCancellation()
}

// observeCancellation is called at every suspension point (§4.6
// "Cancellation"); if the flag is set, it terminates the fiber in place
// with a cancellation-marker error object as the cached result and never
// returns to the caller's closure (the caller learns of this only
// through Join, matching "no forced interruption" — the fiber's own code
// never resumes to see the termination, it simply never gets control
// back).
func (f *Fiber) observeCancellation() {
	if !f.cancelled() {
		return
	}
	f.finish(runtime.NewError("cancelled"))
	goruntime.Goexit()
}

func (f *Fiber) finish(v runtime.Value) {
	f.resultMu.Lock()
	f.result = v
	f.resultMu.Unlock()
	f.state.Store(int32(StateDone))
	close(f.done)
}

// Result returns the cached result if the fiber has finished.
func (f *Fiber) Result() (runtime.Value, bool) {
	select {
	case <-f.done:
		f.resultMu.Lock()
		defer f.resultMu.Unlock()
		return f.result, true
	default:
		return nil, false
	}
}
