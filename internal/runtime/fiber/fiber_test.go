package fiber

import (
	"context"
	"testing"
	"time"

	"github.com/omni-lang/omni/internal/runtime"
)

func TestScheduler_SpawnAndJoin(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s := NewScheduler(ctx)

	f := s.Spawn(func(f *Fiber) runtime.Value {
		return runtime.NewInt(7)
	})
	if err := s.Drain(); err != nil {
		t.Fatalf("drain: %v", err)
	}
	v := Join(f)
	if n, _ := runtime.ObjToInt(v); n != 7 {
		t.Fatalf("got %v", v)
	}
}

func TestScheduler_YieldInterleaves(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s := NewScheduler(ctx)

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		s.Spawn(func(f *Fiber) runtime.Value {
			order = append(order, i)
			f.Yield()
			order = append(order, i+10)
			return runtime.Nil()
		})
	}
	if err := s.Drain(); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(order) != 6 {
		t.Fatalf("expected 6 recorded steps, got %d: %v", len(order), order)
	}
}

func TestFiber_CancelObservedAtYield(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s := NewScheduler(ctx)

	started := make(chan struct{})
	proceed := make(chan struct{})
	f := s.Spawn(func(f *Fiber) runtime.Value {
		close(started)
		<-proceed // deterministically wait for the test to set Cancel first
		f.Yield()
		return runtime.NewInt(1) // unreachable: Yield observes cancellation and never returns
	})
	<-started
	f.Cancel()
	close(proceed)

	if err := s.Drain(); err != nil {
		t.Fatalf("drain: %v", err)
	}
	v := Join(f)
	msg, ok := runtime.ErrorMessage(v)
	if !ok || msg != "cancelled" {
		t.Fatalf("expected cancellation marker, got %v", v)
	}
}

func TestThreadPool_SpawnAndJoin(t *testing.T) {
	pool := NewThreadPool(2)
	ctx := context.Background()
	th := pool.Spawn(ctx, func() runtime.Value { return runtime.NewInt(5) })
	v := ThreadJoin(th)
	if n, _ := runtime.ObjToInt(v); n != 5 {
		t.Fatalf("got %v", v)
	}
}
