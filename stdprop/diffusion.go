// Package stdprop supplies the reference propagators of spec §4.3:
// Diffusion, Decay, SetConstant, and Advect, each exercising a distinct
// corner of the WriteMode/read-resolution contract.
//
// © 2025 murk authors. MIT License.
package stdprop

import (
	"github.com/tachyon-beep/murk/core"
	"github.com/tachyon-beep/murk/propagator"
	"github.com/tachyon-beep/murk/space"
)

// Diffusion spreads a scalar field toward its neighbour average at rate
// Coefficient (spec: "Diffusion (Incremental, reads previous + staging
// neighbours)"). It declares Incremental so the staging buffer arrives
// pre-seeded with the previous generation's values. It declares the field
// in both ReadsPrevious and Reads, but Step takes the cell's own value and
// every neighbour value from the previous snapshot (ReadPrevious) only, so
// cells updated earlier in the same pass never feed into later cells.
type Diffusion struct {
	Field       core.FieldId
	Coefficient float64
}

func (d Diffusion) Name() string { return "diffusion" }

func (d Diffusion) Reads() propagator.FieldSet         { return propagator.NewFieldSet(d.Field) }
func (d Diffusion) ReadsPrevious() propagator.FieldSet { return propagator.NewFieldSet(d.Field) }

func (d Diffusion) Writes() []propagator.FieldWrite {
	return []propagator.FieldWrite{{Field: d.Field, Mode: propagator.Incremental}}
}

// MaxDt returns a diffusion stability bound (explicit-Euler, proportional
// to 1/coefficient so a stiffer diffusion constant tightens the allowed
// step); a degenerate zero coefficient places no bound.
func (d Diffusion) MaxDt(sp space.Space) float64 {
	if d.Coefficient <= 0 {
		return 1e9
	}
	return 0.5 / d.Coefficient
}

func (d Diffusion) Step(ctx propagator.Context) error {
	prev, ok := ctx.ReadPrevious(d.Field)
	if !ok {
		return core.NewError(core.KindUndefinedField, "diffusion: field never written")
	}
	out, err := ctx.Write(d.Field)
	if err != nil {
		return err
	}
	sp := ctx.Space()
	dt := ctx.Dt()
	order := sp.CanonicalOrdering()
	for rank, coord := range order {
		neighbours := sp.Neighbours(coord)
		if len(neighbours) == 0 {
			out[rank] = prev[rank]
			continue
		}
		sum := 0.0
		n := 0
		for _, nc := range neighbours {
			nr, ok := sp.CanonicalRank(nc)
			if !ok {
				continue
			}
			sum += float64(prev[nr])
			n++
		}
		if n == 0 {
			out[rank] = prev[rank]
			continue
		}
		avg := sum / float64(n)
		out[rank] = prev[rank] + float32(d.Coefficient*dt*(avg-float64(prev[rank])))
	}
	return nil
}
