package fiber

import (
	"context"

	"github.com/omni-lang/omni/internal/runtime"
	"github.com/omni-lang/omni/internal/runtime/channels"
)

// ChannelSend and ChannelRecv are the blocking channel_send/channel_recv
// suspension points (§4.9: "a fiber may suspend only at: fiber_yield, a
// blocking channel_send/channel_recv, a blocking fiber_select,
// fiber_join"). They release the scheduler's turn before blocking on the
// underlying channel op and reacquire it once unblocked, so other ready
// fibers in the same scope get to run while this one waits — exactly
// what a real stack-switch would achieve by suspending to the scheduler.
func ChannelSend(f *Fiber, ch *channels.Channel, v runtime.Value) error {
	f.state.Store(int32(StateBlocked))
	f.scheduler.relinquish()
	err := ch.Send(f.scheduler.ctx, v)
	f.scheduler.reacquire(f.scheduler.ctx)
	f.state.Store(int32(StateRunning))
	f.observeCancellation()
	return err
}

// ChannelRecv is the blocking counterpart to ChannelSend.
func ChannelRecv(f *Fiber, ch *channels.Channel) (runtime.Value, bool) {
	f.state.Store(int32(StateBlocked))
	f.scheduler.relinquish()
	v, ok := ch.Recv(f.scheduler.ctx)
	f.scheduler.reacquire(f.scheduler.ctx)
	f.state.Store(int32(StateRunning))
	f.observeCancellation()
	return v, ok
}

// Select implements the blocking form of fiber_select (§4.7): cases are
// scanned without giving up the turn (a non-blocking scan costs nothing),
// and the scheduler's turn is only relinquished if nothing was ready and
// no DEFAULT case was present.
func Select(f *Fiber, cases []channels.SelectCase) int {
	immediateCtx, cancel := context.WithCancel(f.scheduler.ctx)
	cancel() // a cancelled ctx makes channels.Select do one non-blocking scan
	if idx := channels.Select(immediateCtx, cases); idx >= 0 {
		return idx
	}
	f.state.Store(int32(StateBlocked))
	f.scheduler.relinquish()
	idx := channels.Select(f.scheduler.ctx, cases)
	f.scheduler.reacquire(f.scheduler.ctx)
	f.state.Store(int32(StateRunning))
	f.observeCancellation()
	return idx
}
