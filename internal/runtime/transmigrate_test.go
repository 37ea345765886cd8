package runtime

import "testing"

func TestTransmigrate_DeepCopyPreservesSharing(t *testing.T) {
	rt := New(DefaultConfig())
	src := rt.NewRegion()
	dst := rt.NewRegion()

	shared := NewBoxIn(src, NewInt(42))
	p := NewPairIn(src, shared, shared)

	copied, err := Transmigrate(p, dst)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	co := copied.(*Object)
	if co.Region() != dst {
		t.Fatal("copy should be owned by dst")
	}

	a := PairA(copied)
	b := PairB(copied)
	if a.(*Object) != b.(*Object) {
		t.Fatal("sharing within the copied graph must be preserved via the identity map")
	}
	if n, _ := ObjToInt(BoxGet(a)); n != 42 {
		t.Fatalf("got %d", n)
	}
}

func TestTransmigrate_AlreadyResidentIsNoOp(t *testing.T) {
	rt := New(DefaultConfig())
	r := rt.NewRegion()
	v := NewBoxIn(r, NewInt(1))

	copied, err := Transmigrate(v, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if copied.(*Object) != v.(*Object) {
		t.Fatal("transmigrating into the value's own region should be a no-op")
	}
}

func TestTransmigrate_GlobalValueUnaffected(t *testing.T) {
	rt := New(DefaultConfig())
	dst := rt.NewRegion()
	v := NewString("hello") // nil region: global

	copied, err := Transmigrate(v, dst)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if copied.(*Object) != v.(*Object) {
		t.Fatal("a global value should not be copied")
	}
}
