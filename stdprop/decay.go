package stdprop

import (
	"math"

	"github.com/tachyon-beep/murk/core"
	"github.com/tachyon-beep/murk/propagator"
	"github.com/tachyon-beep/murk/space"
)

// Decay exponentially decays a field toward zero at Rate per unit time
// (spec: "Decay (Full, pure previous-snapshot read)"). It writes Full —
// every cell is overwritten from the previous snapshot's value alone, so
// it never reads any current-tick staging, which is the point of
// exercising the Full write-mode contract.
type Decay struct {
	Field core.FieldId
	Rate  float64
}

func (d Decay) Name() string { return "decay" }

func (d Decay) Reads() propagator.FieldSet         { return propagator.NewFieldSet() }
func (d Decay) ReadsPrevious() propagator.FieldSet { return propagator.NewFieldSet(d.Field) }

func (d Decay) Writes() []propagator.FieldWrite {
	return []propagator.FieldWrite{{Field: d.Field, Mode: propagator.Full}}
}

func (d Decay) MaxDt(sp space.Space) float64 { return 1e9 }

func (d Decay) Step(ctx propagator.Context) error {
	prev, ok := ctx.ReadPrevious(d.Field)
	if !ok {
		return core.NewError(core.KindUndefinedField, "decay: field never written")
	}
	out, err := ctx.Write(d.Field)
	if err != nil {
		return err
	}
	factor := float32(math.Exp(-d.Rate * ctx.Dt()))
	for i, v := range prev {
		out[i] = v * factor
	}
	return nil
}
