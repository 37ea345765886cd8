package channels

import (
	"context"
	"testing"
	"time"

	"github.com/omni-lang/omni/internal/runtime"
)

func TestChannel_Basic(t *testing.T) {
	ch := New(nil, 2)
	if err := ch.Send(context.Background(), runtime.NewInt(1)); err != nil {
		t.Fatal(err)
	}
	if !ch.TrySend(runtime.NewInt(2)) {
		t.Fatal("trysend failed")
	}
	if ch.TrySend(runtime.NewInt(3)) {
		t.Fatal("trysend on full buffer should fail")
	}

	v, ok := ch.TryRecv()
	if !ok {
		t.Fatal("expected a value")
	}
	if n, _ := runtime.ObjToInt(v); n != 1 {
		t.Fatalf("got %v", n)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v2, ok := ch.Recv(ctx)
	if !ok {
		t.Fatal("expected second value")
	}
	if n, _ := runtime.ObjToInt(v2); n != 2 {
		t.Fatalf("got %v", n)
	}
}

func TestChannel_UnbufferedRendezvous(t *testing.T) {
	ch := New(nil, 0)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() { _ = ch.Send(context.Background(), runtime.NewInt(5)) }()

	v, ok := ch.Recv(ctx)
	if !ok {
		t.Fatal("expected rendezvous value")
	}
	if n, _ := runtime.ObjToInt(v); n != 5 {
		t.Fatalf("got %v", n)
	}
}

func TestChannel_Close(t *testing.T) {
	ch := New(nil, 1)
	ch.Close()
	ch.Close() // idempotent, I2

	if ch.TrySend(runtime.NewInt(1)) {
		t.Fatal("send on closed should fail")
	}
	if _, ok := ch.TryRecv(); ok {
		t.Fatal("recv on closed-empty should report not ok")
	}
}

func TestChannel_CloseDrainsBufferFirst(t *testing.T) {
	ch := New(nil, 2)
	_ = ch.Send(context.Background(), runtime.NewInt(1))
	ch.Close()

	v, ok := ch.TryRecv()
	if !ok {
		t.Fatal("expected buffered value to drain before closed-empty")
	}
	if n, _ := runtime.ObjToInt(v); n != 1 {
		t.Fatalf("got %v", n)
	}
	if _, ok := ch.TryRecv(); ok {
		t.Fatal("expected closed-empty after drain")
	}
}

func TestChannel_UnbufferedSendAfterCloseRejectsWithoutPanic(t *testing.T) {
	ch := New(nil, 0)
	ch.Close()

	if ch.TrySend(runtime.NewInt(1)) {
		t.Fatal("trysend on a closed unbuffered channel should fail")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ch.Send(ctx, runtime.NewInt(1)); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestSelect_EmptyCasesReturnsNegativeOne(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if idx := Select(ctx, nil); idx != -1 {
		t.Fatalf("expected -1 for an empty case set, got %d", idx)
	}
}

func TestSelect_DefaultWhenNoneReady(t *testing.T) {
	a := New(nil, 0)
	b := New(nil, 0)

	var out runtime.Value
	cases := []SelectCase{
		{Kind: CaseRecv, Ch: a, RecvOut: &out},
		{Kind: CaseRecv, Ch: b, RecvOut: &out},
		{Kind: CaseDefault},
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	idx := Select(ctx, cases)
	if idx != 2 {
		t.Fatalf("expected default case index 2, got %d", idx)
	}
	if out != nil {
		t.Fatalf("recv_out should be left unset, got %v", out)
	}
}

func TestSelect_FiresReadyRecv(t *testing.T) {
	a := New(nil, 0)
	b := New(nil, 0)

	go func() { _ = b.Send(context.Background(), runtime.NewInt(7)) }()

	var out runtime.Value
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// Give the sender a moment to park on b so recvReady observes it.
	time.Sleep(10 * time.Millisecond)

	idx := Select(ctx, []SelectCase{
		{Kind: CaseRecv, Ch: a, RecvOut: &out},
		{Kind: CaseRecv, Ch: b, RecvOut: &out},
	})
	if idx != 1 {
		t.Fatalf("expected case 1 to fire, got %d", idx)
	}
	if n, _ := runtime.ObjToInt(out); n != 7 {
		t.Fatalf("got %v", out)
	}
}
