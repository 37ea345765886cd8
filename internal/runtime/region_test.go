package runtime

import "testing"

func TestRegion_InlineThenChunkAlloc(t *testing.T) {
	rt := New(DefaultConfig())
	r := rt.NewRegion()

	buf, err := r.Alloc(64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(buf) != 64 {
		t.Fatalf("got len %d", len(buf))
	}
	if r.InlineBufUsedBytes() != 64 {
		t.Fatalf("expected inline bytes used 64, got %d", r.InlineBufUsedBytes())
	}

	// Exhaust the inline buffer and force a chunk.
	if _, err := r.Alloc(300); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.ChunkCount() == 0 {
		t.Fatal("expected a chunk to have been allocated")
	}
}

func TestRegion_AllocZeroSizeIsError(t *testing.T) {
	rt := New(DefaultConfig())
	r := rt.NewRegion()
	if _, err := r.Alloc(0); err == nil {
		t.Fatal("expected error for zero-size allocation")
	}
}

func TestRegion_ExitIdempotent(t *testing.T) {
	rt := New(DefaultConfig())
	r := rt.NewRegion()
	r.Exit()
	r.Exit() // I1: idempotent
}

func TestRegion_RetainSurvivesExit(t *testing.T) {
	rt := New(DefaultConfig())
	r := rt.NewRegion()
	if _, err := r.Alloc(300); err != nil { // past the inline buffer: forces a chunk
		t.Fatalf("unexpected error: %v", err)
	}
	r.RetainInternal()
	r.Exit()
	if r.ChunkCount() == 0 {
		t.Fatal("a retained region should keep its chunks after Exit")
	}
	r.ReleaseInternal()
	if r.ChunkCount() != 0 {
		t.Fatal("dropping the last retain should destroy the exited region")
	}
}

func TestOutlives(t *testing.T) {
	rt := New(DefaultConfig())
	parent := rt.NewRegion()
	parent.SetLifetimeRank(0)
	child := rt.NewRegion()
	child.SetParent(parent)

	if !Outlives(parent, child) {
		t.Fatal("parent should outlive child")
	}
	if Outlives(child, parent) {
		t.Fatal("child should not outlive parent")
	}
	if !Outlives(parent, parent) {
		t.Fatal("a region outlives itself")
	}
	if Outlives(nil, child) {
		t.Fatal("nil never outlives anything (§8 boundary)")
	}
}

func TestRegion_Reset(t *testing.T) {
	rt := New(DefaultConfig())
	r := rt.NewRegion()
	if _, err := r.Alloc(512); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.Reset()
	if r.BytesAllocated() != 0 || r.InlineBufUsedBytes() != 0 || r.ChunkCount() != 0 {
		t.Fatal("expected all counters to be zeroed after reset")
	}
}

func TestRegion_MergeSafe(t *testing.T) {
	rt := New(DefaultConfig())
	dst := rt.NewRegion()
	src := rt.NewRegion()

	if _, err := src.Alloc(512); err != nil { // past the inline buffer, so src has a chunk and no inline pointers
		t.Fatalf("unexpected error: %v", err)
	}
	if !MergePermitted(src, dst) {
		t.Fatal("expected merge to be permitted between unowned regions")
	}
	MergeSafe(src, dst)
	if dst.ChunkCount() == 0 {
		t.Fatal("expected dst to inherit src's chunk")
	}
	if src.ChunkCount() != 0 {
		t.Fatal("expected src to be emptied by the merge")
	}
}

func TestRegion_MergeForbiddenAcrossOwners(t *testing.T) {
	rt := New(DefaultConfig())
	a := rt.NewRegion()
	b := rt.NewRegion()
	a.SetOwner(1)
	b.SetOwner(2)
	if MergePermitted(a, b) {
		t.Fatal("merge across distinct owning threads must be forbidden")
	}
}
