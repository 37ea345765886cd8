package channels

import (
	"context"
	"time"

	"github.com/omni-lang/omni/internal/runtime"
)

// CaseKind identifies a fiber_select case (§6: "case kind in {SEND, RECV,
// DEFAULT}").
type CaseKind int

const (
	CaseSend CaseKind = iota
	CaseRecv
	CaseDefault
)

// SelectCase is one entry of the cases[] array passed to fiber_select
// (§4.7). For a SEND case, SendVal is written into the channel if it
// fires. For a RECV case, RecvOut receives the value if it fires (left
// unset otherwise). DEFAULT cases need only Kind set.
type SelectCase struct {
	Kind    CaseKind
	Ch      *Channel
	SendVal runtime.Value
	RecvOut *runtime.Value
}

// Select implements fiber_select: scans cases once in listed order for
// any case ready without blocking, fires the first one found, and
// returns its index. If none is ready and a DEFAULT case is present, its
// index is returned instead. If neither applies, Select parks until ctx
// is done or any case becomes ready, per §4.7's "parks on all channels
// simultaneously and is woken when any case becomes ready, firing exactly
// one".
func Select(ctx context.Context, cases []SelectCase) int {
	if len(cases) == 0 {
		return -1 // §4.7: no cases and no default has nothing to park on
	}
	if idx, ok := scanReady(cases); ok {
		return idx
	}
	for i, c := range cases {
		if c.Kind == CaseDefault {
			return i
		}
	}
	return parkUntilReady(ctx, cases)
}

func scanReady(cases []SelectCase) (int, bool) {
	for i, c := range cases {
		switch c.Kind {
		case CaseSend:
			if c.Ch.sendReady() {
				if c.Ch.TrySend(c.SendVal) {
					return i, true
				}
			}
		case CaseRecv:
			if c.Ch.recvReady() {
				if v, ok := c.Ch.TryRecv(); ok || c.Ch.IsClosed() {
					if c.RecvOut != nil {
						*c.RecvOut = v
					}
					return i, true
				}
			}
		}
	}
	return -1, false
}

// parkUntilReady polls with a short cooperative backoff rather than
// erecting a Go select over a dynamic []reflect.SelectCase: the channel
// set here is runtime-chosen and variable-length, and the teacher's own
// SelectRecv (channel.go, pre-port) used the same round-robin-with-backoff
// shape for exactly that reason, rather than reach for reflect.Select.
func parkUntilReady(ctx context.Context, cases []SelectCase) int {
	backoff := 50 * time.Microsecond
	const maxBackoff = 5 * time.Millisecond
	for {
		if idx, ok := scanReady(cases); ok {
			return idx
		}
		select {
		case <-ctx.Done():
			return -1
		case <-time.After(backoff):
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}
