package runtime

import "testing"

func TestRefcount_ImmediatesAndGlobalsAreNoOps(t *testing.T) {
	IncRef(NewInt(1))
	DecRef(NewInt(1)) // must not panic: immediate, no header

	g := NewString("global") // region nil: global
	IncRef(g)
	DecRef(g)
	o := g.(*Object)
	if o.header.refcount != 1 {
		t.Fatal("global objects must not be refcounted: the count must stay at its initial 1")
	}
}

func TestRefcount_FinalizesOnLastDecRef(t *testing.T) {
	rt := New(DefaultConfig())
	r := rt.NewRegion()
	child := newBoxedObj(r, TagInt, int64(5))
	o := newBoxedObj(r, TagBox, &boxPayload{value: child})

	DecRef(o)
	if child.payload != nil {
		t.Fatal("expected child to be torn down once o's last ref drops")
	}
}

// TestRefcount_TeardownOfLongChainDoesNotRecurse builds a pair chain deep
// enough to blow the default goroutine stack if finalizeLeaf's teardown
// ever drove through Go call recursion instead of its explicit worklist
// (§4.5 edge case: a long owned chain must not overflow the stack).
func TestRefcount_TeardownOfLongChainDoesNotRecurse(t *testing.T) {
	rt := New(DefaultConfig())
	r := rt.NewRegion()

	const depth = 200000
	var head Value = Nil()
	for i := 0; i < depth; i++ {
		head = NewPairIn(r, NewInt(int64(i)), head)
	}

	DecRef(head.(*Object))

	tail := head.(*Object)
	if tail.payload != nil {
		t.Fatal("expected the head of the chain to be torn down")
	}
}

func TestRefcount_Saturates(t *testing.T) {
	rt := New(DefaultConfig())
	r := rt.NewRegion()
	o := newBoxedObj(r, TagBox, &boxPayload{})
	o.header.refcount = maxRefCount
	IncRef(o)
	if o.header.refcount != maxRefCount {
		t.Fatal("refcount must saturate, never overflow")
	}
}
