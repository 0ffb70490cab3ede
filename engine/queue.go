package engine

import (
	"sync/atomic"

	"github.com/tachyon-beep/murk/core"
)

// Queue is the bounded ingress queue shared by every runtime mode: a
// world-local monotonic arrival counter plus a bounded channel backing
// the realtime submit path's ChannelFull semantics (spec §4.5, §4.7).
// Lockstep bypasses the channel and calls Accept directly per step_sync
// call, since it has no separate submitter thread to decouple from.
type Queue struct {
	arrivalSeq atomic.Uint64
	ch         chan *core.Command
}

// NewQueue constructs a Queue with the given channel capacity. Capacity 0
// is legal for lockstep-only use, where Accept is called directly and the
// channel is never used.
func NewQueue(capacity int) *Queue {
	return &Queue{ch: make(chan *core.Command, capacity)}
}

// Accept assigns cmd's ArrivalSeq, normalises it, and returns it ready
// for ordering — used directly by lockstep, and internally by Submit.
func (q *Queue) Accept(cmd *core.Command) *core.Command {
	cmd.Normalize()
	cmd.ArrivalSeq = q.arrivalSeq.Add(1) - 1
	return cmd
}

// Submit enqueues cmd on the bounded channel for the realtime publisher
// to pick up; returns ChannelFull if the channel has no free capacity
// (spec §4.7: "submit(commands) enqueues on a bounded channel; on full →
// ChannelFull. No blocking-for-tick semantics").
func (q *Queue) Submit(cmd *core.Command) error {
	q.Accept(cmd)
	select {
	case q.ch <- cmd:
		return nil
	default:
		return core.NewError(core.KindChannelFull, "ingress channel is full")
	}
}

// Drain removes up to max commands currently buffered on the channel
// without blocking, for the publisher thread to batch into one tick.
func (q *Queue) Drain(max int) []*core.Command {
	var out []*core.Command
	for len(out) < max {
		select {
		case cmd := <-q.ch:
			out = append(out, cmd)
		default:
			return out
		}
	}
	return out
}
