// Package channels implements the channel engine (§4.7): buffered and
// unbuffered rendezvous communication between fibers/threads, plus
// fiber_select. It is grounded on the teacher's generic Channel[T]
// wrapper around Go's native channels, specialized here to
// runtime.Value and extended with the cross-region store barrier on
// buffered sends that the teacher's version, built for plain Go types,
// had no reason to carry.
package channels

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/omni-lang/omni/internal/runtime"
)

// ErrClosed is returned by blocking Send on a closed channel.
var ErrClosed = errors.New("channels: closed")

// Channel is either buffered (a circular buffer of capacity >= 1) or
// unbuffered (capacity 0, rendezvous), per §3 and §4.7. Region is the
// channel's owning region, used by Send to drive the store barrier on
// buffered channels (§4.7: "channel_send invokes omni_store_repair...").
// Unbuffered sends bypass it — the value is handed directly to a
// waiting receiver instead of being stored in the channel.
type Channel struct {
	region *runtime.Region

	mu     sync.Mutex
	buf    []runtime.Value // circular buffer, only used when cap > 0
	head   int
	count  int
	cap    int
	closed bool

	// Unbuffered rendezvous: a parked sender hands its value here and a
	// waiting receiver picks it up directly, never touching the channel
	// as storage.
	rendezvous chan rendezvousSlot
	// closeCh is closed exactly once by Close, for the unbuffered send/recv
	// selects to observe closure. rendezvous itself is never closed: a
	// concurrent Send racing Close would otherwise execute "send on closed
	// channel" and panic (§7: a closed channel must reject sends with a
	// non-zero result, never panic).
	closeCh chan struct{}

	sendWaiters int64 // atomic, informational: used by fiber_select readiness checks
	recvWaiters int64

	cond *sync.Cond
}

type rendezvousSlot struct {
	value runtime.Value
}

// New implements make_channel(cap) (§6). capacity 0 means rendezvous;
// capacity >= 1 is a circular buffer of that size (§8 boundary
// behaviours).
func New(region *runtime.Region, capacity int) *Channel {
	if capacity < 0 {
		capacity = 0
	}
	c := &Channel{region: region, cap: capacity}
	c.cond = sync.NewCond(&c.mu)
	if capacity > 0 {
		c.buf = make([]runtime.Value, capacity)
	} else {
		c.rendezvous = make(chan rendezvousSlot)
		c.closeCh = make(chan struct{})
	}
	return c
}

// AsValue wraps the channel as a runtime.Value carrying TagChannel, so it
// can be stored in pairs/arrays/dicts alongside any other value (§3).
func (c *Channel) AsValue() runtime.Value {
	return runtime.NewOpaque(c.region, runtime.TagChannel, c)
}

// FromValue recovers the *Channel a TagChannel Value was minted from, or
// nil if v is not one.
func FromValue(v runtime.Value) *Channel {
	ch, _ := runtime.OpaquePayload(v).(*Channel)
	return ch
}

// Send implements channel_send: blocks until the value is delivered or
// the channel is closed. Returns ErrClosed if the channel is closed
// (§6: "non-zero if closed").
func (c *Channel) Send(ctx context.Context, v runtime.Value) error {
	if c.cap == 0 {
		return c.sendUnbuffered(ctx, v)
	}
	return c.sendBuffered(ctx, v)
}

func (c *Channel) sendBuffered(ctx context.Context, v runtime.Value) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		if c.closed {
			return ErrClosed
		}
		if c.count < c.cap {
			break
		}
		if !c.waitLocked(ctx) {
			return ctx.Err()
		}
	}
	// §4.7: buffered channels store the value, so the store barrier must
	// run before it lands in the slot.
	repaired := runtime.StoreRepair(runtime.ContainerInRegion(c.region), v)
	slot := (c.head + c.count) % c.cap
	c.buf[slot] = repaired
	c.count++
	c.cond.Broadcast()
	return nil
}

func (c *Channel) sendUnbuffered(ctx context.Context, v runtime.Value) error {
	if c.IsClosed() {
		return ErrClosed
	}
	atomic.AddInt64(&c.sendWaiters, 1)
	defer atomic.AddInt64(&c.sendWaiters, -1)
	select {
	case c.rendezvous <- rendezvousSlot{value: v}:
		return nil
	case <-c.closeCh:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend implements channel_try_send: non-blocking, returns whether the
// value was accepted (§6).
func (c *Channel) TrySend(v runtime.Value) bool {
	if c.cap == 0 {
		if c.IsClosed() {
			return false
		}
		atomic.AddInt64(&c.sendWaiters, 1)
		defer atomic.AddInt64(&c.sendWaiters, -1)
		select {
		case c.rendezvous <- rendezvousSlot{value: v}:
			return true
		case <-c.closeCh:
			return false
		default:
			return false
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.count >= c.cap {
		return false
	}
	repaired := runtime.StoreRepair(runtime.ContainerInRegion(c.region), v)
	slot := (c.head + c.count) % c.cap
	c.buf[slot] = repaired
	c.count++
	c.cond.Broadcast()
	return true
}

// Recv implements channel_recv: blocks until a value is available, or
// returns (Nothing, false) once the channel is closed and drained
// (§4.7, §6).
func (c *Channel) Recv(ctx context.Context) (runtime.Value, bool) {
	if c.cap == 0 {
		return c.recvUnbuffered(ctx)
	}
	return c.recvBuffered(ctx)
}

func (c *Channel) recvBuffered(ctx context.Context) (runtime.Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		if c.count > 0 {
			v := c.buf[c.head]
			c.buf[c.head] = nil
			c.head = (c.head + 1) % c.cap
			c.count--
			c.cond.Broadcast()
			return v, true
		}
		if c.closed {
			return runtime.Nothing(), false
		}
		if !c.waitLocked(ctx) {
			return runtime.Nothing(), false
		}
	}
}

func (c *Channel) recvUnbuffered(ctx context.Context) (runtime.Value, bool) {
	atomic.AddInt64(&c.recvWaiters, 1)
	defer atomic.AddInt64(&c.recvWaiters, -1)
	select {
	case slot := <-c.rendezvous:
		return slot.value, true
	case <-c.closeCh:
		return runtime.Nothing(), false
	case <-ctx.Done():
		return runtime.Nothing(), false
	}
}

// TryRecv implements channel_try_recv (§6): ok=false if empty (and not
// closed) or closed-and-drained.
func (c *Channel) TryRecv() (runtime.Value, bool) {
	if c.cap == 0 {
		select {
		case slot := <-c.rendezvous:
			return slot.value, true
		case <-c.closeCh:
			return runtime.Nothing(), false
		default:
			return runtime.Nothing(), false
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.count > 0 {
		v := c.buf[c.head]
		c.buf[c.head] = nil
		c.head = (c.head + 1) % c.cap
		c.count--
		c.cond.Broadcast()
		return v, true
	}
	return runtime.Nothing(), false
}

// Close implements channel_close: idempotent (I2, §8). On a buffered
// channel with data remaining, existing recvs drain the buffer first and
// only then observe closed-empty (§4.7).
func (c *Channel) Close() {
	c.mu.Lock()
	already := c.closed
	c.closed = true
	c.mu.Unlock()
	if already {
		return
	}
	if c.cap == 0 {
		close(c.closeCh)
	}
	c.cond.Broadcast()
}

// IsClosed reports the channel's closed flag.
func (c *Channel) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Len/Cap mirror the teacher's introspection helpers.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
func (c *Channel) Cap() int { return c.cap }

// waitLocked blocks on c.cond until woken or ctx is done, re-acquiring
// c.mu before returning. Reports false if ctx fired first.
func (c *Channel) waitLocked(ctx context.Context) bool {
	done := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		close(done)
		c.cond.Broadcast()
	})
	defer stop()
	for {
		select {
		case <-done:
			return false
		default:
		}
		c.cond.Wait()
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
}

// sendReady/recvReady back fiber_select's readiness scan (§4.7): a case
// is ready without blocking if the operation would not have to wait.
func (c *Channel) sendReady() bool {
	if c.cap == 0 {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return false
		}
		return atomic.LoadInt64(&c.recvWaiters) > 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.count < c.cap
}

func (c *Channel) recvReady() bool {
	if c.cap == 0 {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return true // closed-empty is immediately observable
		}
		return atomic.LoadInt64(&c.sendWaiters) > 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count > 0 || c.closed
}
