// Command omni-probe exercises the object, region, and concurrency
// runtime end to end: it allocates a small graph across two regions,
// forces a store-barrier repair, spins up a fiber scheduler, and sends a
// value over both a buffered and an unbuffered channel, printing what it
// observes at each step.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/omni-lang/omni/internal/runtime"
	"github.com/omni-lang/omni/internal/runtime/channels"
	"github.com/omni-lang/omni/internal/runtime/fiber"
)

func main() {
	rt := runtime.Default()

	dst := rt.NewRegion()
	dst.SetLifetimeRank(0)
	src := rt.NewRegion()
	src.SetLifetimeRank(1)
	src.SetParent(dst)

	box := runtime.NewBoxIn(dst, runtime.Nil())
	pair := runtime.NewPairIn(src, runtime.NewInt(1), runtime.NewInt(2))

	fmt.Printf("before repair: box owner region=%d, pair owner region=%d\n",
		regionOf(box), regionOf(pair))

	runtime.BoxSet(box, pair)
	stored := runtime.BoxGet(box)
	fmt.Printf("after repair: stored value now owned by region=%d\n", regionOf(stored))

	src.Exit()
	a, b := walkPair(stored)
	fmt.Printf("pair survives src.Exit(): a=%v b=%v\n", a, b)

	runChannelDemo()
}

func regionOf(v runtime.Value) runtime.RegionID {
	o, ok := v.(*runtime.Object)
	if !ok || o.Region() == nil {
		return runtime.GlobalRegionID
	}
	return o.Region().ID()
}

func walkPair(v runtime.Value) (int64, int64) {
	a, _ := runtime.ObjToInt(runtime.PairA(v))
	b, _ := runtime.ObjToInt(runtime.PairB(v))
	return a, b
}

func runChannelDemo() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sched := fiber.NewScheduler(ctx)
	buffered := channels.New(nil, 4)
	rendezvous := channels.New(nil, 0)

	sched.Spawn(func(f *fiber.Fiber) runtime.Value {
		for i := int64(0); i < 3; i++ {
			_ = fiber.ChannelSend(f, buffered, runtime.NewInt(i))
		}
		buffered.Close()
		return runtime.Nil()
	})

	sched.Spawn(func(f *fiber.Fiber) runtime.Value {
		_ = fiber.ChannelSend(f, rendezvous, runtime.NewInt(42))
		return runtime.Nil()
	})

	producer := sched.Spawn(func(f *fiber.Fiber) runtime.Value {
		total := int64(0)
		for {
			v, ok := fiber.ChannelRecv(f, buffered)
			if !ok {
				break
			}
			n, _ := runtime.ObjToInt(v)
			total += n
			f.Yield()
		}
		v, _ := fiber.ChannelRecv(f, rendezvous)
		n, _ := runtime.ObjToInt(v)
		return runtime.NewInt(total + n)
	})

	if err := sched.Drain(); err != nil {
		fmt.Printf("scheduler drain error: %v\n", err)
		return
	}
	result := fiber.Join(producer)
	n, _ := runtime.ObjToInt(result)
	fmt.Printf("fiber result: %d\n", n)
}
