package space

import (
	"math"

	"github.com/tachyon-beep/murk/core"
)

// Hex is a 2D hexagonal lattice in axial coordinates (q, r), bounded to a
// Qlen x Rlen parallelogram. Canonical ordering is r-major then q (spec
// §4.2: "2D hex (axial coordinates; canonical ordering r-major then q)").
type Hex struct {
	qlen, rlen int
	edge       EdgeBehaviour
}

// NewHex constructs a bounded axial hex grid.
func NewHex(qlen, rlen int, edge EdgeBehaviour) (*Hex, error) {
	if qlen <= 0 || rlen <= 0 {
		return nil, core.NewError(core.KindEmptySpace, "hex dimensions must be > 0")
	}
	return &Hex{qlen: qlen, rlen: rlen, edge: edge}, nil
}

func (h *Hex) Dims() int      { return 2 }
func (h *Hex) CellCount() int { return h.qlen * h.rlen }

func (h *Hex) CanonicalOrdering() []core.Coord {
	out := make([]core.Coord, 0, h.qlen*h.rlen)
	for r := 0; r < h.rlen; r++ {
		for q := 0; q < h.qlen; q++ {
			out = append(out, core.Coord{int32(q), int32(r)})
		}
	}
	return out
}

func (h *Hex) CanonicalRank(c core.Coord) (int, bool) {
	if len(c) != 2 {
		return 0, false
	}
	q, r := int(c[0]), int(c[1])
	if q < 0 || q >= h.qlen || r < 0 || r >= h.rlen {
		return 0, false
	}
	return r*h.qlen + q, true
}

func (h *Hex) resolveAxis(v int32, length int) (int32, bool) {
	switch h.edge {
	case Absorb:
		if v < 0 || int(v) >= length {
			return 0, false
		}
		return v, true
	case Clamp:
		if v < 0 {
			return 0, true
		}
		if int(v) >= length {
			return int32(length - 1), true
		}
		return v, true
	case Wrap:
		m := int32(length)
		return ((v % m) + m) % m, true
	}
	return 0, false
}

// hexOffsets are the 6 axial neighbour directions in a fixed, documented
// order (spec §4.2: "order is part of the contract").
var hexOffsets = []core.Coord{
	{1, 0}, {1, -1}, {0, -1}, {-1, 0}, {-1, 1}, {0, 1},
}

func (h *Hex) Neighbours(c core.Coord) []core.Coord {
	if _, ok := h.CanonicalRank(c); !ok {
		return nil
	}
	var out []core.Coord
	seen := map[[2]int32]bool{}
	for _, o := range hexOffsets {
		nq, okq := h.resolveAxis(c[0]+o[0], h.qlen)
		nr, okr := h.resolveAxis(c[1]+o[1], h.rlen)
		if !okq || !okr {
			continue
		}
		key := [2]int32{nq, nr}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, core.Coord{nq, nr})
	}
	return out
}

// Distance uses the standard axial-hex metric: (|dq| + |dr| + |dq+dr|)/2.
func (h *Hex) Distance(a, b core.Coord) float64 {
	dq := float64(b[0] - a[0])
	dr := float64(b[1] - a[1])
	if h.edge == Wrap {
		dq = wrapMinDelta(dq, float64(h.qlen))
		dr = wrapMinDelta(dr, float64(h.rlen))
	}
	return (math.Abs(dq) + math.Abs(dr) + math.Abs(dq+dr)) / 2
}

func wrapMinDelta(d, m float64) float64 {
	ad := math.Abs(d)
	if m-ad < ad {
		if d > 0 {
			return d - m
		}
		return d + m
	}
	return d
}

func (h *Hex) CompileRegion(spec RegionSpec) (RegionPlan, error) {
	return compileGeneric(h, spec)
}
