package runtime

import "sync/atomic"

// maxRefCount is the saturation ceiling (§3 invariant 4, P1): once a
// refcount reaches it, further IncRef calls are no-ops, so a pathological
// retain storm cannot wrap the counter around to zero and trigger a
// premature free. Grounded on gc_avoidance_clean.go's CleanRefCounter,
// which saturates its own counter at math.MaxUint32-1 for the same reason.
const maxRefCount = ^uint32(0) - 1

// IncRef implements inc_ref (§4.5): a no-op on immediates and on objects
// owned by the global region (§3 invariant 5), a saturating atomic
// increment otherwise.
func IncRef(v Value) {
	o, ok := v.(*Object)
	if !ok || o.header.region == nil {
		return
	}
	p := o.refcountAtomic()
	for {
		cur := atomic.LoadUint32(p)
		if cur >= maxRefCount {
			return
		}
		if atomic.CompareAndSwapUint32(p, cur, cur+1) {
			return
		}
	}
}

// DecRef implements dec_ref (§4.5): a no-op on immediates and globals.
// When the count reaches zero, the object is finalized: if it belongs to
// a component, the component machinery decides collective liveness
// (ReleaseComponent); otherwise its own slots are walked and DecRef'd
// iteratively — not recursively, so a long chain of owned pairs cannot
// overflow the Go call stack (§4.5 edge case).
func DecRef(v Value) {
	o, ok := v.(*Object)
	if !ok || o.header.region == nil {
		return
	}
	p := o.refcountAtomic()
	for {
		cur := atomic.LoadUint32(p)
		if cur == maxRefCount {
			return // saturated: never reaches zero via DecRef
		}
		if cur == 0 {
			return
		}
		if atomic.CompareAndSwapUint32(p, cur, cur-1) {
			if cur-1 == 0 {
				finalize(o)
			}
			return
		}
	}
}

// finalize tears an object down once its refcount (or its component's
// combined handle/tether count) reaches zero: children are released
// through an explicit worklist rather than Go call recursion, matching
// the iterative discipline transmigrate.go uses for deep copies (§4.3).
func finalize(o *Object) {
	if c := o.Component(); c != nil {
		ReleaseComponent(o, finalizeLeaf)
		return
	}
	finalizeLeaf(o)
}

func finalizeLeaf(o *Object) {
	work := []*Object{o}
	seen := map[*Object]bool{}
	for len(work) > 0 {
		n := len(work) - 1
		cur := work[n]
		work = work[:n]
		if cur == nil || seen[cur] {
			continue
		}
		seen[cur] = true

		for _, child := range childObjects(cur) {
			// decRefForTeardown never calls back into finalize/finalizeLeaf
			// itself; a child whose count reaches zero here is instead
			// pushed onto work, so a long chain of owned objects unwinds
			// through this loop rather than through nested Go calls.
			if dead := decRefForTeardown(child); dead != nil {
				work = append(work, dead)
			}
		}
		cur.payload = nil
	}
}

// decRefForTeardown is DecRef's logic with the zero-crossing case handed
// back to the caller instead of driven through finalize/finalizeLeaf:
// a component member still routes through ReleaseComponent (bounded by
// component size, not graph depth), but a plain object that reaches zero
// is returned for finalizeLeaf's own worklist to pick up.
func decRefForTeardown(v Value) *Object {
	o, ok := v.(*Object)
	if !ok || o.header.region == nil {
		return nil
	}
	p := o.refcountAtomic()
	for {
		cur := atomic.LoadUint32(p)
		if cur == maxRefCount || cur == 0 {
			return nil
		}
		if atomic.CompareAndSwapUint32(p, cur, cur-1) {
			if cur-1 != 0 {
				return nil
			}
			if c := o.Component(); c != nil {
				ReleaseComponent(o, finalizeLeaf)
				return nil
			}
			return o
		}
	}
}

// childObjects returns the Values directly reachable from o's slots, used
// by finalizeLeaf to release them as o itself is torn down.
func childObjects(o *Object) []Value {
	switch p := o.payload.(type) {
	case *pairPayload:
		return []Value{p.a, p.b}
	case *arrayPayload:
		out := make([]Value, len(p.data))
		copy(out, p.data)
		return out
	case *boxPayload:
		return []Value{p.value}
	case *dictPayload:
		out := make([]Value, 0, len(p.vals))
		out = append(out, p.vals...)
		return out
	case *setPayload:
		out := make([]Value, len(p.members))
		copy(out, p.members)
		return out
	case closurePayload:
		return append([]Value(nil), p.captured...)
	default:
		return nil
	}
}
