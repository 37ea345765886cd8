package runtime

import "sync/atomic"

// Atom implements the atom engine (§3, §4.8): a single shared memory cell
// supporting atomic read, store, swap, and compare-and-swap, independent
// of the region/refcount/component machinery — an atom is not itself
// region-owned, and the values it holds are expected to be immediates or
// global objects (storing a region-owned value into an atom shared across
// threads would violate the Region Closure Property the moment the
// owning region exits, so constructors here do not route through
// StoreRepair; callers are responsible for only atoming values that
// outlive their readers, per §4.8's note that atoms are a deliberately
// narrow primitive).
type Atom struct {
	v atomic.Pointer[Value]
}

// NewAtom implements mk_atom.
func NewAtom(initial Value) *Atom {
	a := &Atom{}
	a.v.Store(&initial)
	return a
}

// Deref implements atom_deref.
func (a *Atom) Deref() Value {
	p := a.v.Load()
	if p == nil {
		return Nothing()
	}
	return *p
}

// Reset implements atom_reset: installs v and returns the *previous*
// value (§4.8).
func (a *Atom) Reset(v Value) Value {
	old := a.v.Swap(&v)
	if old == nil {
		return Nothing()
	}
	return *old
}

// Swap implements atom_swap (§4.8): reads the current value, applies fn,
// and compare-and-swaps the result in; on contention from a concurrent
// writer it retries from the freshly observed value, exactly as a CAS
// retry loop must, so concurrent swap-increments never lose an update
// (S6: two threads swap-incrementing 100 times each must land on 200).
// Returns the value installed by this call's own successful swap.
func (a *Atom) Swap(fn func(Value) Value) Value {
	for {
		cur := a.v.Load()
		var curVal Value = Nothing()
		if cur != nil {
			curVal = *cur
		}
		next := fn(curVal)
		if a.v.CompareAndSwap(cur, &next) {
			return next
		}
	}
}

// CAS implements atom_cas: stores v iff the current value is eq?/equal to
// old, per ValueEqual; returns whether the swap happened.
func (a *Atom) CAS(old, v Value) bool {
	for {
		cur := a.v.Load()
		var curVal Value = Nothing()
		if cur != nil {
			curVal = *cur
		}
		if !ValueEqual(curVal, old) {
			return false
		}
		if a.v.CompareAndSwap(cur, &v) {
			return true
		}
	}
}
