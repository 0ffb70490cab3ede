package engine

import (
	"github.com/tachyon-beep/murk/core"
	"github.com/tachyon-beep/murk/internal/arena"
	"github.com/tachyon-beep/murk/propagator"
	"github.com/tachyon-beep/murk/space"
)

// DefaultRollbackLimit is the fail-stop threshold of spec §4.5 when the
// caller does not override it.
const DefaultRollbackLimit = 3

// World bundles the arena, validated propagator pipeline, space, and
// parameter table one world owns exclusively, plus the rollback/fail-stop
// state machine of spec §4.5. lockstep, realtime, and batched each drive
// a World through Step; none of them re-implements tick semantics.
type World struct {
	Arena    *arena.Arena
	Pipeline *propagator.Pipeline
	Space    space.Space

	Parameters map[core.ParameterKey]float64

	rollbackLimit int
	rollbackCount int
	disabled      bool

	tickId     core.TickId
	paramVer   core.ParameterVersion
}

// NewWorld constructs a World. rollbackLimit <= 0 uses DefaultRollbackLimit.
func NewWorld(a *arena.Arena, pipeline *propagator.Pipeline, sp space.Space, rollbackLimit int) *World {
	if rollbackLimit <= 0 {
		rollbackLimit = DefaultRollbackLimit
	}
	return &World{
		Arena:         a,
		Pipeline:      pipeline,
		Space:         sp,
		Parameters:    make(map[core.ParameterKey]float64),
		rollbackLimit: rollbackLimit,
	}
}

// TickId returns the last successfully published tick id.
func (w *World) TickId() core.TickId { return w.tickId }

// Disabled reports whether the world is in the fail-stop state.
func (w *World) Disabled() bool { return w.disabled }

// Reset clears the fail-stop state and rollback counter, allowing the
// world to resume stepping (spec §4.5: "further step calls return
// TickDisabled until the world is reset").
func (w *World) Reset() {
	w.disabled = false
	w.rollbackCount = 0
}

// StepResult is the outcome of one Step call (spec §4.6: StepResult{snapshot, receipts, metrics}).
type StepResult struct {
	Snapshot arena.Snapshot
	Receipts []core.Receipt
	RolledBack bool
}

// Step executes exactly one tick against cmds per spec §4.5's seven-step
// contract. pinTick, if non-nil, pins apply_tick_id to an explicit value
// (lockstep's deterministic replay use case); otherwise it defaults to
// tickId+1.
func (w *World) Step(cmds []*core.Command, pinTick *core.TickId) (StepResult, error) {
	if w.disabled {
		return StepResult{}, core.NewError(core.KindTickDisabled, "world is fail-stopped after repeated rollbacks")
	}

	applyTick := w.tickId + 1
	if pinTick != nil {
		applyTick = *pinTick
	}

	SortIngress(cmds)

	receipts := make([]core.Receipt, 0, len(cmds))
	admitted := make([]*core.Command, 0, len(cmds))
	for _, cmd := range cmds {
		// ExpiresAfterTick == 0 means "never expires": no command can ever
		// have applyTick == 0, since the first published tick is 1.
		if cmd.ExpiresAfterTick != 0 && cmd.ExpiresAfterTick < applyTick {
			receipts = append(receipts, core.Receipt{
				Accepted:   false,
				Reason:     core.ReasonStale,
				ArrivalSeq: cmd.ArrivalSeq,
			})
			continue
		}
		admitted = append(admitted, cmd)
	}

	guard, err := w.Arena.BeginTick()
	if err != nil {
		return StepResult{}, core.Wrap(core.KindAllocationFailed, "begin_tick failed", err)
	}

	previous := w.Arena.Snapshot()
	workingParamVer := w.paramVer
	appliedReceipts, workingParamVer := w.applyCommands(guard, admitted, applyTick, workingParamVer)
	receipts = append(receipts, appliedReceipts...)

	if err := w.Pipeline.Run(guard, previous, w.Space); err != nil {
		w.Arena.DiscardTick()
		w.rollbackCount++
		for i := range appliedReceipts {
			receipts[len(receipts)-len(appliedReceipts)+i] = core.Receipt{
				Accepted:   false,
				Reason:     core.ReasonTickRollback,
				ArrivalSeq: appliedReceipts[i].ArrivalSeq,
			}
		}
		if w.rollbackCount >= w.rollbackLimit {
			w.disabled = true
		}
		return StepResult{Receipts: receipts, RolledBack: true}, core.Wrap(core.KindTickRolledBack, "propagator pipeline failed", err)
	}

	w.paramVer = workingParamVer
	if err := w.Arena.Publish(applyTick, w.paramVer); err != nil {
		return StepResult{}, err
	}
	w.rollbackCount = 0
	w.tickId = applyTick

	return StepResult{Snapshot: w.Arena.Snapshot(), Receipts: receipts}, nil
}

// applyCommands applies SetField/SetParameter commands in order, building
// one receipt per command (spec §4.5 step 4) and returning the parameter
// version as of the last applied SetParameter (or paramVer unchanged if
// none were applied).
func (w *World) applyCommands(guard *arena.TickGuard, admitted []*core.Command, applyTick core.TickId, paramVer core.ParameterVersion) ([]core.Receipt, core.ParameterVersion) {
	receipts := make([]core.Receipt, len(admitted))
	for i, cmd := range admitted {
		switch cmd.Payload {
		case core.PayloadSetField:
			receipts[i] = w.applySetField(guard, cmd, applyTick)
		case core.PayloadSetParameter:
			w.Parameters[cmd.SetParameter.Key] = cmd.SetParameter.Value
			paramVer++
			pv := paramVer
			tick := applyTick
			receipts[i] = core.Receipt{
				Accepted:              true,
				AppliedTickId:         &tick,
				Reason:                core.ReasonOK,
				ParameterVersionAfter: &pv,
				ArrivalSeq:            cmd.ArrivalSeq,
			}
		default:
			receipts[i] = core.Receipt{Accepted: false, Reason: core.ReasonUnknownField, ArrivalSeq: cmd.ArrivalSeq}
		}
	}
	return receipts, paramVer
}

func (w *World) applySetField(guard *arena.TickGuard, cmd *core.Command, applyTick core.TickId) core.Receipt {
	payload := cmd.SetField
	rank, ok := w.Space.CanonicalRank(payload.Coord)
	if !ok {
		return core.Receipt{Accepted: false, Reason: core.ReasonCoordOutOfBounds, ArrivalSeq: cmd.ArrivalSeq}
	}
	if int(payload.Field) >= len(w.Arena.Fields()) {
		return core.Receipt{Accepted: false, Reason: core.ReasonUnknownField, ArrivalSeq: cmd.ArrivalSeq}
	}
	buf, err := guard.Writer(payload.Field)
	if err != nil || rank >= len(buf) {
		return core.Receipt{Accepted: false, Reason: core.ReasonBufferMismatch, ArrivalSeq: cmd.ArrivalSeq}
	}
	buf[rank] = float32(payload.Value)
	tick := applyTick
	return core.Receipt{Accepted: true, AppliedTickId: &tick, Reason: core.ReasonOK, ArrivalSeq: cmd.ArrivalSeq}
}
