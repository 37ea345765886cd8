package runtime

import (
	"sync"

	"github.com/omni-lang/omni/internal/runtime/concurrency"
)

// objectPool is a size-classed free list for *Object headers, grounded on
// the teacher's StackManager.framePool (sync.Pool-backed frame reuse),
// but backed by the concurrency package's Vyukov-style MPMCQueue instead
// of a mutex-guarded slice per class — a free list is exactly the
// producer/consumer shape that ring buffer was built for, and using it
// here keeps the lock-free primitive exercised by something other than
// its own tests.
//
// Region allocation never frees individual objects (§3); this pool exists
// purely to cut allocator churn for short-lived boxed values that a
// caller explicitly knows are done with (see Runtime.Recycle), not as a
// substitute for the region/refcount/component lifecycle.
type objectPool struct {
	maxPerClass int

	mu      sync.Mutex
	classes map[Tag]*concurrency.MPMCQueue[*Object]
}

func newObjectPool(maxPerClass int) *objectPool {
	return &objectPool{
		maxPerClass: maxPerClass,
		classes:     make(map[Tag]*concurrency.MPMCQueue[*Object]),
	}
}

func (p *objectPool) queueFor(tag Tag) *concurrency.MPMCQueue[*Object] {
	p.mu.Lock()
	defer p.mu.Unlock()
	q, ok := p.classes[tag]
	if !ok {
		q = concurrency.NewMPMCQueue[*Object](uint64(p.maxPerClass))
		p.classes[tag] = q
	}
	return q
}

func (p *objectPool) get(tag Tag) *Object {
	q := p.queueFor(tag)
	var o *Object
	if q.Dequeue(&o) {
		return o
	}
	return nil
}

func (p *objectPool) put(o *Object) {
	if o == nil {
		return
	}
	tag := o.header.tag
	o.payload = nil
	o.header = ObjectHeader{}
	q := p.queueFor(tag)
	q.Enqueue(o) // a full class simply drops the object, as before
}

// Recycle returns a boxed object's header to the pool once a caller knows
// no other Value still references it (e.g. immediately after a failed
// dec_ref on a freshly allocated, never-shared object). It is a best
// effort optimization, never required for correctness: region exit and
// refcount-driven finalization remain the sole sources of truth for
// object lifetime.
func (rt *Runtime) Recycle(v Value) {
	if o, ok := v.(*Object); ok {
		rt.pool.put(o)
	}
}
