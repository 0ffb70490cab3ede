package space

import (
	"math"

	"github.com/tachyon-beep/murk/core"
)

// Ring1D is a periodic 1-dimensional lattice (spec §4.2: "periodic 1D
// ring"). It is equivalent to Line1D with a fixed Wrap edge, split into
// its own type since the topology is conceptually distinct (a line with
// an optional wrap boundary vs. an always-periodic ring) and callers
// should not be able to construct a "ring with absorb edges", which would
// be a contradiction in terms.
type Ring1D struct {
	length int
}

// NewRing1D constructs a periodic ring of the given length.
func NewRing1D(length int) (*Ring1D, error) {
	if length <= 0 {
		return nil, core.NewError(core.KindEmptySpace, "ring1d length must be > 0")
	}
	return &Ring1D{length: length}, nil
}

func (r *Ring1D) Dims() int      { return 1 }
func (r *Ring1D) CellCount() int { return r.length }

func (r *Ring1D) CanonicalOrdering() []core.Coord {
	out := make([]core.Coord, r.length)
	for i := 0; i < r.length; i++ {
		out[i] = core.Coord{int32(i)}
	}
	return out
}

func (r *Ring1D) CanonicalRank(c core.Coord) (int, bool) {
	if len(c) != 1 {
		return 0, false
	}
	x := int(c[0])
	if x < 0 || x >= r.length {
		return 0, false
	}
	return x, true
}

func (r *Ring1D) wrap(x int32) int32 {
	m := int32(r.length)
	return ((x % m) + m) % m
}

func (r *Ring1D) Neighbours(c core.Coord) []core.Coord {
	if _, ok := r.CanonicalRank(c); !ok {
		return nil
	}
	x := c[0]
	left := r.wrap(x - 1)
	right := r.wrap(x + 1)
	if left == right {
		return []core.Coord{{left}}
	}
	return []core.Coord{{left}, {right}}
}

func (r *Ring1D) Distance(a, b core.Coord) float64 {
	d := math.Abs(float64(b[0] - a[0]))
	m := float64(r.length)
	return math.Min(d, m-d)
}

func (r *Ring1D) CompileRegion(spec RegionSpec) (RegionPlan, error) {
	return compileGeneric(r, spec)
}
