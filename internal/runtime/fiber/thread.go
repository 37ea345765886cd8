package fiber

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/omni-lang/omni/internal/runtime"
)

// ThreadPool implements Tier 1 (§4.9): real OS-thread-backed parallelism,
// used for spawn_thread. Unlike Scheduler's fibers, threads run
// concurrently with each other; ThreadPool only bounds how many run at
// once, via a weighted semaphore sized to the pool's worker budget,
// grounded on the same golang.org/x/sys/x/sync stack the region subsystem
// and Scheduler already draw on.
type ThreadPool struct {
	sem *semaphore.Weighted
}

// NewThreadPool creates a pool that runs at most maxParallel threads
// concurrently.
func NewThreadPool(maxParallel int64) *ThreadPool {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &ThreadPool{sem: semaphore.NewWeighted(maxParallel)}
}

// Thread is the handle returned by spawn_thread: joinable, result cached
// like a Fiber's (§3's Fiber description applies equally to threads
// modulo the stack-switch/scheduler machinery, which threads don't use).
type Thread struct {
	done chan struct{}

	resultMu sync.Mutex
	result   runtime.Value
}

// ThreadFunc is the body a spawned thread runs.
type ThreadFunc func() runtime.Value

// Spawn implements spawn_thread(closure): runs fn on a real goroutine,
// gated by the pool's semaphore so callers can bound Tier-1 parallelism
// the same way a native runtime bounds its OS thread count.
func (p *ThreadPool) Spawn(ctx context.Context, fn ThreadFunc) *Thread {
	t := &Thread{done: make(chan struct{})}
	go func() {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			t.finish(runtime.NewError("cancelled"))
			return
		}
		defer p.sem.Release(1)
		t.finish(fn())
	}()
	return t
}

func (t *Thread) finish(v runtime.Value) {
	t.resultMu.Lock()
	t.result = v
	t.resultMu.Unlock()
	close(t.done)
}

// ThreadJoin implements thread_join(t): blocks until t completes.
func ThreadJoin(t *Thread) runtime.Value {
	<-t.done
	t.resultMu.Lock()
	defer t.resultMu.Unlock()
	return t.result
}
