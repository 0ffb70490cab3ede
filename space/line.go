package space

import (
	"math"

	"github.com/tachyon-beep/murk/core"
)

// Line1D is a 1-dimensional lattice of length Len with a configurable
// boundary behaviour (spec §4.2: "1D line (with absorb/clamp/wrap edge)").
type Line1D struct {
	length int
	edge   EdgeBehaviour
}

// NewLine1D constructs a 1D line of the given length and edge behaviour.
func NewLine1D(length int, edge EdgeBehaviour) (*Line1D, error) {
	if length <= 0 {
		return nil, core.NewError(core.KindEmptySpace, "line1d length must be > 0")
	}
	return &Line1D{length: length, edge: edge}, nil
}

func (l *Line1D) Dims() int      { return 1 }
func (l *Line1D) CellCount() int { return l.length }

func (l *Line1D) CanonicalOrdering() []core.Coord {
	out := make([]core.Coord, l.length)
	for i := 0; i < l.length; i++ {
		out[i] = core.Coord{int32(i)}
	}
	return out
}

func (l *Line1D) CanonicalRank(c core.Coord) (int, bool) {
	if len(c) != 1 {
		return 0, false
	}
	x := int(c[0])
	if x < 0 || x >= l.length {
		return 0, false
	}
	return x, true
}

func (l *Line1D) resolve(x int32) (int32, bool) {
	switch l.edge {
	case Absorb:
		if x < 0 || int(x) >= l.length {
			return 0, false
		}
		return x, true
	case Clamp:
		if x < 0 {
			return 0, true
		}
		if int(x) >= l.length {
			return int32(l.length - 1), true
		}
		return x, true
	case Wrap:
		m := int32(l.length)
		x = ((x % m) + m) % m
		return x, true
	}
	return 0, false
}

func (l *Line1D) Neighbours(c core.Coord) []core.Coord {
	if _, ok := l.CanonicalRank(c); !ok {
		return nil
	}
	x := c[0]
	var out []core.Coord
	seen := map[int32]bool{}
	for _, dx := range [2]int32{-1, 1} {
		nx, ok := l.resolve(x + dx)
		if !ok || seen[nx] {
			continue
		}
		seen[nx] = true
		out = append(out, core.Coord{nx})
	}
	return out
}

func (l *Line1D) Distance(a, b core.Coord) float64 {
	d := math.Abs(float64(b[0] - a[0]))
	if l.edge == Wrap {
		m := float64(l.length)
		d = math.Min(d, m-d)
	}
	return d
}

func (l *Line1D) CompileRegion(spec RegionSpec) (RegionPlan, error) {
	return compileGeneric(l, spec)
}
