package runtime

import "testing"

func TestComponent_JoinAndDismantle(t *testing.T) {
	rt := New(DefaultConfig())
	r := rt.NewRegion()
	a := newBoxedObj(r, TagBox, &boxPayload{})
	b := newBoxedObj(r, TagBox, &boxPayload{})

	c, err := JoinComponents(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Component() == nil || b.Component() == nil {
		t.Fatal("both members should carry the component handle")
	}
	if find(a.Component()) != find(b.Component()) {
		t.Fatal("a and b should be in the same component after join")
	}

	var finalized []*Object
	// c currently has handles=2 (one per member added via JoinComponents'
	// singleton path) - drop both.
	ReleaseComponent(a, func(o *Object) { finalized = append(finalized, o) })
	if len(finalized) != 0 {
		t.Fatal("should not dismantle while the other member's handle remains")
	}
	ReleaseComponent(b, func(o *Object) { finalized = append(finalized, o) })
	if len(finalized) != 2 {
		t.Fatalf("expected both members finalized once handles+tethers reach zero, got %d", len(finalized))
	}
	_ = c
}

func TestComponent_TetherKeepsAlive(t *testing.T) {
	rt := New(DefaultConfig())
	r := rt.NewRegion()
	a := newBoxedObj(r, TagBox, &boxPayload{})
	b := newBoxedObj(r, TagBox, &boxPayload{})
	_, err := JoinComponents(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	AddTether(a.Component())

	var finalized int
	ReleaseComponent(a, func(*Object) { finalized++ })
	ReleaseComponent(b, func(*Object) { finalized++ })
	if finalized != 0 {
		t.Fatal("a live tether should prevent dismantling even with handles at zero")
	}

	RemoveTether(a.Component(), func(*Object) { finalized++ })
	if finalized != 2 {
		t.Fatalf("removing the last tether should dismantle, got %d", finalized)
	}
}

func TestComponent_ChainedJoinsShareOneRoot(t *testing.T) {
	rt := New(DefaultConfig())
	r := rt.NewRegion()
	a := newBoxedObj(r, TagBox, &boxPayload{})
	b := newBoxedObj(r, TagBox, &boxPayload{})
	cc := newBoxedObj(r, TagBox, &boxPayload{})

	if _, err := JoinComponents(a, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := JoinComponents(b, cc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	root := find(a.Component())
	if find(b.Component()) != root || find(cc.Component()) != root {
		t.Fatal("all three members should share one root after chained joins")
	}
}
