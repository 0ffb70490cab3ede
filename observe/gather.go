package observe

import (
	"math"

	"github.com/tachyon-beep/murk/core"
	"github.com/tachyon-beep/murk/internal/arena"
)

// Snapshot is the minimal surface Gather needs from arena.Snapshot,
// narrowed so observe doesn't otherwise depend on the arena package's
// full API.
type Snapshot interface {
	Generation() core.Generation
	Read(field core.FieldId) ([]float32, bool)
}

var _ Snapshot = arena.Snapshot{}

// Gather executes plan against snap, filling output and mask (spec
// §4.4 execution contract). output and mask must have exactly
// plan.OutputLen() and plan.MaskLen() elements respectively, or
// an InvalidSpec error is returned. If bind does not match the generation
// triple plan was compiled against, PlanInvalidated is returned and the
// caller must recompile. A failure partway through leaves output
// partially written but mask always reflects exactly what was written.
func Gather(plan *ObsPlan, snap Snapshot, bind BindKey, output []float32, mask []uint8) error {
	if len(output) != plan.outputLen || len(mask) != plan.maskLen {
		return core.NewError(core.KindInvalidSpec, "gather: output/mask buffer length mismatch")
	}
	if bind != plan.bind {
		return core.NewError(core.KindPlanInvalidated, "gather: bind key no longer matches compiled plan")
	}

	for _, ce := range plan.entries {
		if err := gatherEntry(ce, snap, output, mask); err != nil {
			return err
		}
	}
	return nil
}

func gatherEntry(ce compiledEntry, snap Snapshot, output []float32, mask []uint8) error {
	if ce.outputLen == 0 {
		return nil
	}
	if !ce.fieldValid {
		return core.NewError(core.KindExecutionFailed, "gather: entry references undefined field")
	}
	field, ok := snap.Read(ce.src.Field)
	if !ok {
		// Field exists in schema but was never written (e.g. unallocated
		// PerTick/Sparse field) — every cell is "no contribution".
		for i := 0; i < ce.outputLen; i++ {
			mask[ce.maskOffset+i] = 0
		}
		return nil
	}

	// NoPooling reads one value per selected cell at field[rank], matching
	// engine.applySetField's own buf[rank] convention — both assume arity
	// 1 (scalar fields). A vector field's additional components are not
	// addressable through an observation entry; gather scalar fields only.
	if ce.src.Pooling == NoPooling {
		for i, rank := range ce.regionPlan.TensorIndex {
			valid := ce.regionPlan.ValidMask[i]
			outIdx := ce.outputOffset + i
			if valid == 0 || rank < 0 || rank >= len(field) {
				output[outIdx] = 0
				mask[outIdx] = 0
				continue
			}
			output[outIdx] = float32(applyTransform(ce.src.Transform, float64(field[rank])))
			mask[outIdx] = 1
		}
		return nil
	}

	v, contributed := reduce(ce.src.Pooling, field, ce.regionPlan.TensorIndex, ce.regionPlan.ValidMask)
	if !contributed {
		v = poolIdentity(ce.src.Pooling)
	}
	output[ce.outputOffset] = float32(applyTransform(ce.src.Transform, v))
	if contributed {
		mask[ce.maskOffset] = 1
	} else {
		mask[ce.maskOffset] = 0
	}
	return nil
}

// poolIdentity returns the reducer's identity value for a zero-
// contribution window (spec §4.4: "0 for sum, NaN for mean with mask =
// 0"). Max/Min have no natural finite identity, so they follow mean's
// convention.
func poolIdentity(p Pooling) float64 {
	switch p {
	case PoolSum:
		return 0
	default:
		return math.NaN()
	}
}
