package runtime

import "testing"

func TestImmediates(t *testing.T) {
	if !IsInt(NewInt(5)) {
		t.Fatal("expected small int to be immediate-tagged TagInt")
	}
	if _, ok := NewInt(5).(Immediate); !ok {
		t.Fatal("small int should be an Immediate, not boxed")
	}
	big := NewInt(int64(1) << 62)
	if _, ok := big.(*Object); !ok {
		t.Fatal("out-of-range int should be boxed")
	}
	if !IsNil(Nil()) || !IsNothing(Nothing()) {
		t.Fatal("nil/nothing tags")
	}
	if v, ok := ObjToBool(NewBool(true)); !ok || !v {
		t.Fatal("bool roundtrip")
	}
}

func TestFloatsAlwaysBoxed(t *testing.T) {
	f := NewFloat(3.5)
	if _, ok := f.(*Object); !ok {
		t.Fatal("floats must always be boxed, never immediate")
	}
	v, ok := ObjToFloat(f)
	if !ok || v != 3.5 {
		t.Fatalf("got %v %v", v, ok)
	}
}

func TestSymbolInterning(t *testing.T) {
	a := NewSymbol("foo")
	b := NewSymbol("foo")
	if a != b {
		t.Fatal("equal-named symbols must be eq? (pointer identical)")
	}
	if NewSymbol("foo") == NewKeyword("foo") {
		t.Fatal("a symbol and keyword of the same name are distinct")
	}
}

func TestPair(t *testing.T) {
	p := NewPair(NewInt(1), NewInt(2))
	if n, _ := ObjToInt(PairA(p)); n != 1 {
		t.Fatalf("a=%d", n)
	}
	if n, _ := ObjToInt(PairB(p)); n != 2 {
		t.Fatalf("b=%d", n)
	}
	SetPairA(p, NewInt(10))
	if n, _ := ObjToInt(PairA(p)); n != 10 {
		t.Fatalf("a after set=%d", n)
	}
}

func TestArray(t *testing.T) {
	a := NewArray(0)
	if ArrayLength(a) != 0 {
		t.Fatal("fresh array should be empty (§8 boundary)")
	}
	ArrayPush(a, NewInt(1))
	ArrayPush(a, NewInt(2))
	if ArrayLength(a) != 2 {
		t.Fatalf("length=%d", ArrayLength(a))
	}
	if n, _ := ObjToInt(ArrayGet(a, 1)); n != 2 {
		t.Fatalf("get(1)=%d", n)
	}
	if !IsNothing(ArrayGet(a, 5)) {
		t.Fatal("out of range get should be nothing")
	}
	ArraySet(a, 0, NewInt(99))
	if n, _ := ObjToInt(ArrayGet(a, 0)); n != 99 {
		t.Fatalf("get(0) after set=%d", n)
	}
}

func TestDictAndSet(t *testing.T) {
	d := NewDict()
	k := NewSymbol("k")
	if !IsNothing(DictGet(d, k)) {
		t.Fatal("missing key should be nothing")
	}
	DictSet(d, k, NewInt(7))
	if n, _ := ObjToInt(DictGet(d, k)); n != 7 {
		t.Fatalf("got %d", n)
	}
	DictSet(d, k, NewInt(8))
	if n, _ := ObjToInt(DictGet(d, k)); n != 8 {
		t.Fatalf("expected overwrite, got %d", n)
	}

	s := NewSet()
	SetAdd(s, NewInt(1))
	SetAdd(s, NewInt(1))
	if SetSize(s) != 1 {
		t.Fatal("duplicate add must not grow a set")
	}
	if !SetContains(s, NewInt(1)) {
		t.Fatal("expected membership")
	}
	SetRemove(s, NewInt(1))
	if SetContains(s, NewInt(1)) || SetSize(s) != 0 {
		t.Fatal("expected removal")
	}
}

func TestBox(t *testing.T) {
	b := NewBox(NewInt(1))
	if n, _ := ObjToInt(BoxGet(b)); n != 1 {
		t.Fatalf("got %d", n)
	}
	BoxSet(b, NewInt(2))
	if n, _ := ObjToInt(BoxGet(b)); n != 2 {
		t.Fatalf("got %d", n)
	}
}

func TestValueEqual(t *testing.T) {
	if !ValueEqual(NewInt(3), NewInt(3)) {
		t.Fatal("equal immediates")
	}
	if ValueEqual(NewInt(3), NewInt(4)) {
		t.Fatal("unequal immediates")
	}
	if !ValueEqual(NewString("a"), NewString("a")) {
		t.Fatal("strings compare by content")
	}
	if ValueEqual(NewBox(NewInt(1)), NewBox(NewInt(1))) {
		t.Fatal("distinct boxes are not eq? even with equal contents")
	}
}
