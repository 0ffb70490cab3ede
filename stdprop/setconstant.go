package stdprop

import (
	"github.com/tachyon-beep/murk/core"
	"github.com/tachyon-beep/murk/propagator"
	"github.com/tachyon-beep/murk/space"
)

// SetConstant pins a field to a fixed value every tick (spec: "SetConstant
// (Full, init-time)"). It reads nothing at all and writes Full, so it is
// typically composed as the very first stage of a pipeline to establish
// a field's initial condition — but since it re-asserts the constant on
// every tick, it also doubles as a clamp for fields that must never drift
// (e.g. a boundary-condition field another propagator must not touch).
type SetConstant struct {
	Field core.FieldId
	Value float64
}

func (c SetConstant) Name() string { return "set_constant" }

func (c SetConstant) Reads() propagator.FieldSet         { return propagator.NewFieldSet() }
func (c SetConstant) ReadsPrevious() propagator.FieldSet { return propagator.NewFieldSet() }

func (c SetConstant) Writes() []propagator.FieldWrite {
	return []propagator.FieldWrite{{Field: c.Field, Mode: propagator.Full}}
}

func (c SetConstant) MaxDt(sp space.Space) float64 { return 1e9 }

func (c SetConstant) Step(ctx propagator.Context) error {
	out, err := ctx.Write(c.Field)
	if err != nil {
		return err
	}
	v := float32(c.Value)
	for i := range out {
		out[i] = v
	}
	return nil
}
