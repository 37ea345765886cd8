package runtime

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// Component is the union-find node backing the component engine (§4.3):
// objects entangled in a reference cycle are folded into one component so
// the group can be freed as a unit once its combined handle/tether count
// reaches zero, instead of leaking forever under plain refcounting.
//
// This is grounded on the teacher's gc_avoidance.go, which declared a
// CycleDetector type and comment ("would need tri-color marking or a
// back-edge union-find pass") but never implemented it; this port follows
// through with a real path-compressed union-find, using a sync/atomic
// atomic.Pointer for the parent pointer instead of a global mutex.
type Component struct {
	parent atomic.Pointer[Component]

	mu      sync.Mutex
	handles int64 // external references into the component, across all members
	tethers int64 // active tethers; each defers dismantling like a handle

	members []*Object
}

// maxComponentMembers guards against unbounded merge chains from a
// pathological allocation pattern (§4.3 edge case: component overflow).
const maxComponentMembers = 1 << 20

// newComponent creates a singleton component owning obj.
func newComponent(obj *Object) *Component {
	c := &Component{members: []*Object{obj}, handles: 1}
	c.parent.Store(c)
	return c
}

// find implements the union-find find-with-path-compression step.
func find(c *Component) *Component {
	root := c
	for {
		p := root.parent.Load()
		if p == root {
			break
		}
		root = p
	}
	// Path compression: walk again, pointing every node directly at root.
	for c != root {
		p := c.parent.Load()
		c.parent.CompareAndSwap(p, root)
		c = p
	}
	return root
}

// union merges the components containing a and b, folding the smaller
// member list into the larger one (component_merge, §4.3). Returns the
// surviving root, or an error if the merge would exceed
// maxComponentMembers.
func union(a, b *Component) (*Component, *AllocationError) {
	ra, rb := find(a), find(b)
	if ra == rb {
		return ra, nil
	}

	// Always lock in a fixed global order (by component address, see
	// componentOrderLess) to avoid the classic two-mutex deadlock between
	// concurrent merges proceeding in opposite directions.
	first, second := ra, rb
	if componentOrderLess(rb, ra) {
		first, second = rb, ra
	}
	first.mu.Lock()
	second.mu.Lock()
	defer second.mu.Unlock()
	defer first.mu.Unlock()

	if len(ra.members)+len(rb.members) > maxComponentMembers {
		return nil, newAllocError(ErrComponentOverflow, "component member limit exceeded", 0, 0)
	}

	big, small := ra, rb
	if len(small.members) > len(big.members) {
		big, small = small, big
	}
	big.members = append(big.members, small.members...)
	big.handles += small.handles
	big.tethers += small.tethers
	for _, m := range small.members {
		m.setComponent(big)
	}
	small.members = nil
	small.parent.Store(big)
	return big, nil
}

// componentOrderLess gives union() a total, stable order over components by
// comparing their addresses as uintptr values (Go has no < on pointers);
// any consistent tie-break works as long as every caller uses the same one.
func componentOrderLess(x, y *Component) bool {
	return uintptr(unsafe.Pointer(x)) < uintptr(unsafe.Pointer(y))
}

// RetainComponent implements component_retain: bumps the external handle
// count on the component the object currently belongs to. An object with
// no component is left as it is; no component is created for it.
func RetainComponent(o *Object) {
	if o == nil {
		return
	}
	c := o.Component()
	if c == nil {
		return
	}
	root := find(c)
	root.mu.Lock()
	root.handles++
	root.mu.Unlock()
}

// ReleaseComponent implements component_release: drops the external
// handle count; when both handles and tethers reach zero, every member of
// the component is passed to the finalize callback (refcount.go passes
// finalizeLeaf).
func ReleaseComponent(o *Object, finalize func(*Object)) {
	if o == nil {
		return
	}
	c := o.Component()
	if c == nil {
		return
	}
	root := find(c)
	root.mu.Lock()
	root.handles--
	dead := root.handles <= 0 && root.tethers <= 0
	var members []*Object
	if dead {
		members = root.members
		root.members = nil
	}
	root.mu.Unlock()
	if dead {
		for _, m := range members {
			finalize(m)
		}
	}
}

// AddTether implements component_add_tether: records a tether on the
// component. While any tether is held the component is not dismantled,
// even once its handle count has dropped to zero. The store barrier does
// not call it; callers pair it with RemoveTether.
func AddTether(c *Component) {
	if c == nil {
		return
	}
	root := find(c)
	root.mu.Lock()
	root.tethers++
	root.mu.Unlock()
}

// RemoveTether implements component_remove_tether, the counterpart to
// AddTether.
func RemoveTether(c *Component, finalize func(*Object)) {
	if c == nil {
		return
	}
	root := find(c)
	root.mu.Lock()
	root.tethers--
	dead := root.handles <= 0 && root.tethers <= 0
	var members []*Object
	if dead {
		members = root.members
		root.members = nil
	}
	root.mu.Unlock()
	if dead {
		for _, m := range members {
			finalize(m)
		}
	}
}

// JoinComponents implements component_merge as seen from the store
// barrier: ensures a and b belong to the same component. If neither has
// one, a new component holding both is created; if only one has one, the
// other object is added to it; otherwise the two are unioned. Each object
// added adds one handle. Returns the (possibly new) shared component.
func JoinComponents(a, b *Object) (*Component, *AllocationError) {
	ca, cb := a.Component(), b.Component()
	switch {
	case ca == nil && cb == nil:
		c := newComponent(a)
		c.members = append(c.members, b)
		c.handles++
		a.setComponent(c)
		b.setComponent(c)
		return c, nil
	case ca == nil:
		root := find(cb)
		root.mu.Lock()
		root.members = append(root.members, a)
		root.handles++
		root.mu.Unlock()
		a.setComponent(root)
		return root, nil
	case cb == nil:
		root := find(ca)
		root.mu.Lock()
		root.members = append(root.members, b)
		root.handles++
		root.mu.Unlock()
		b.setComponent(root)
		return root, nil
	default:
		return union(ca, cb)
	}
}
