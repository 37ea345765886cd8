package runtime

import "testing"

func TestObjectPool_GetPutRoundtrip(t *testing.T) {
	p := newObjectPool(4)
	if p.get(TagBox) != nil {
		t.Fatal("empty pool should return nil")
	}

	o := &Object{header: ObjectHeader{tag: TagBox}, payload: &boxPayload{}}
	p.put(o)

	got := p.get(TagBox)
	if got != o {
		t.Fatal("expected the same object back out")
	}
	if got.payload != nil {
		t.Fatal("put should clear the payload")
	}
}

func TestObjectPool_RespectsMaxPerClass(t *testing.T) {
	// MPMCQueue rounds capacity up to a power of two with a floor of 2, so a
	// pool asked for 2 slots holds exactly 2 and drops anything past that.
	p := newObjectPool(2)
	p.put(&Object{header: ObjectHeader{tag: TagPair}})
	p.put(&Object{header: ObjectHeader{tag: TagPair}})
	p.put(&Object{header: ObjectHeader{tag: TagPair}})

	var got int
	for p.get(TagPair) != nil {
		got++
	}
	if got != 2 {
		t.Fatalf("expected exactly 2 retained objects past capacity, got %d", got)
	}
}
