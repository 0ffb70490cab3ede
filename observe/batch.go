package observe

import "github.com/tachyon-beep/murk/core"

// GatherBatch executes plan against N snapshots sharing an identical
// schema, filling a contiguous (N x OutputLen) output buffer and a
// parallel (N x MaskLen) mask buffer (spec §4.4 batching). All pre-flight
// checks — output buffer size, plan bind key against bind — are
// validated atomically before gathering begins against any snapshot, so
// a batch either fully executes or fails before touching world state
// (spec §4.4: "pre-flight validates buffer size, field existence in
// world 0, and generation bind key atomically before any world is
// advanced").
func GatherBatch(plan *ObsPlan, snaps []Snapshot, bind BindKey, output []float32, mask []uint8) error {
	n := len(snaps)
	if n == 0 {
		return nil
	}
	if len(output) != n*plan.outputLen || len(mask) != n*plan.maskLen {
		return core.NewError(core.KindInvalidSpec, "gather_batch: output/mask buffer length mismatch")
	}
	if bind != plan.bind {
		return core.NewError(core.KindPlanInvalidated, "gather_batch: bind key no longer matches compiled plan")
	}

	for w, snap := range snaps {
		outSlice := output[w*plan.outputLen : (w+1)*plan.outputLen]
		maskSlice := mask[w*plan.maskLen : (w+1)*plan.maskLen]
		if err := Gather(plan, snap, bind, outSlice, maskSlice); err != nil {
			return err
		}
	}
	return nil
}
