package stdprop

import (
	"math"

	"github.com/tachyon-beep/murk/core"
	"github.com/tachyon-beep/murk/propagator"
	"github.com/tachyon-beep/murk/space"
)

// Advect moves a scalar field along a fixed Velocity by upwinding toward
// each cell's first canonical neighbour (spec: "Advect (reads previous,
// writes Full, demonstrates max_dt stability bound via CFL-style
// condition on the space's minimum neighbour distance)"). Using the
// first neighbour in canonical order as the upwind direction keeps the
// scheme topology-agnostic — every required Space implementation orders
// its neighbours deterministically, so "neighbour 0" is a well-defined,
// stable flow axis even though it isn't a literal compass direction on
// e.g. Hex or FCC12.
type Advect struct {
	Field    core.FieldId
	Velocity float64
}

func (a Advect) Name() string { return "advect" }

func (a Advect) Reads() propagator.FieldSet         { return propagator.NewFieldSet() }
func (a Advect) ReadsPrevious() propagator.FieldSet { return propagator.NewFieldSet(a.Field) }

func (a Advect) Writes() []propagator.FieldWrite {
	return []propagator.FieldWrite{{Field: a.Field, Mode: propagator.Full}}
}

// MaxDt is the CFL-style bound dt <= min_neighbour_distance / |velocity|,
// computed once over the whole space (spec §4.3: propagators declare
// max_dt as a function of the space they'll run against).
func (a Advect) MaxDt(sp space.Space) float64 {
	if a.Velocity == 0 {
		return 1e9
	}
	minDist := math.Inf(1)
	for _, c := range sp.CanonicalOrdering() {
		for _, n := range sp.Neighbours(c) {
			d := sp.Distance(c, n)
			if d > 0 && d < minDist {
				minDist = d
			}
		}
	}
	if math.IsInf(minDist, 1) {
		return 1e9
	}
	return minDist / math.Abs(a.Velocity)
}

func (a Advect) Step(ctx propagator.Context) error {
	prev, ok := ctx.ReadPrevious(a.Field)
	if !ok {
		return core.NewError(core.KindUndefinedField, "advect: field never written")
	}
	out, err := ctx.Write(a.Field)
	if err != nil {
		return err
	}
	sp := ctx.Space()
	dt := ctx.Dt()
	for rank, coord := range sp.CanonicalOrdering() {
		neighbours := sp.Neighbours(coord)
		if len(neighbours) == 0 {
			out[rank] = prev[rank]
			continue
		}
		upwind := neighbours[0]
		nr, ok := sp.CanonicalRank(upwind)
		if !ok {
			out[rank] = prev[rank]
			continue
		}
		dist := sp.Distance(coord, upwind)
		if dist == 0 {
			out[rank] = prev[rank]
			continue
		}
		flux := a.Velocity * (float64(prev[rank]) - float64(prev[nr])) / dist
		out[rank] = prev[rank] - float32(dt*flux)
	}
	return nil
}
