// Package engine implements the shared tick-execution contract of spec
// §4.5: ingress ordering, single-tick execution, rollback on propagator
// failure, and fail-stop after repeated rollbacks. lockstep, realtime,
// and batched all drive a World through this package rather than each
// re-implementing tick semantics.
//
// © 2025 murk authors. MIT License.
package engine

import (
	"sort"

	"github.com/tachyon-beep/murk/core"
)

// sortKey is the four-tuple of spec §4.5's stable ingress sort.
type sortKey struct {
	priorityClass uint8
	sourceID      uint64 // MaxUint64 if source_id is absent
	sourceSeq     uint64 // MaxUint64 if absent, or if source_id is absent
	arrivalSeq    uint64
}

const maxU64 = ^uint64(0)

func keyOf(cmd *core.Command) sortKey {
	k := sortKey{
		priorityClass: uint8(cmd.PriorityClass),
		sourceID:      maxU64,
		sourceSeq:     maxU64,
		arrivalSeq:    cmd.ArrivalSeq,
	}
	if cmd.SourceId != nil {
		k.sourceID = *cmd.SourceId
		if cmd.SourceSeq != nil {
			k.sourceSeq = *cmd.SourceSeq
		}
	}
	return k
}

// SortIngress stably sorts cmds in place per spec §4.5's four-key order:
// priority_class ascending, then source_id (absent sorts last), then
// source_seq (only meaningful alongside a present source_id, absent sorts
// last), then arrival_seq. Stability matters: commands with identical
// keys (impossible for arrival_seq alone, since it's unique, but relevant
// for readers reasoning about the first three keys) keep submission
// order.
func SortIngress(cmds []*core.Command) {
	sort.SliceStable(cmds, func(i, j int) bool {
		a, b := keyOf(cmds[i]), keyOf(cmds[j])
		if a.priorityClass != b.priorityClass {
			return a.priorityClass < b.priorityClass
		}
		if a.sourceID != b.sourceID {
			return a.sourceID < b.sourceID
		}
		if a.sourceSeq != b.sourceSeq {
			return a.sourceSeq < b.sourceSeq
		}
		return a.arrivalSeq < b.arrivalSeq
	})
}
