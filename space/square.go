package space

import (
	"math"

	"github.com/tachyon-beep/murk/core"
)

// Connectivity selects 4- or 8-connected neighbour enumeration on a
// square grid (spec §4.2).
type Connectivity uint8

const (
	Connectivity4 Connectivity = iota
	Connectivity8
)

// Square is a 2D square lattice, 4- or 8-connected, with a uniform edge
// behaviour applied independently to each axis (spec §4.2).
type Square struct {
	w, h  int
	conn  Connectivity
	edge  EdgeBehaviour
	order []core.Coord
}

// NewSquare constructs a W x H square grid.
func NewSquare(w, h int, conn Connectivity, edge EdgeBehaviour) (*Square, error) {
	if w <= 0 || h <= 0 {
		return nil, core.NewError(core.KindEmptySpace, "square dimensions must be > 0")
	}
	s := &Square{w: w, h: h, conn: conn, edge: edge}
	s.order = make([]core.Coord, 0, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			s.order = append(s.order, core.Coord{int32(x), int32(y)})
		}
	}
	return s, nil
}

func (s *Square) Dims() int      { return 2 }
func (s *Square) CellCount() int { return s.w * s.h }

func (s *Square) CanonicalOrdering() []core.Coord { return s.order }

func (s *Square) CanonicalRank(c core.Coord) (int, bool) {
	if len(c) != 2 {
		return 0, false
	}
	x, y := int(c[0]), int(c[1])
	if x < 0 || x >= s.w || y < 0 || y >= s.h {
		return 0, false
	}
	return y*s.w + x, true
}

func (s *Square) resolveAxis(v int32, length int) (int32, bool) {
	switch s.edge {
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

var square4Offsets = []core.Coord{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
var square8Offsets = []core.Coord{
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
	{1, 1}, {1, -1}, {-1, 1}, {-1, -1},
}

func (s *Square) Neighbours(c core.Coord) []core.Coord {
	if _, ok := s.CanonicalRank(c); !ok {
		return nil
	}
	offsets := square4Offsets
	if s.conn == Connectivity8 {
		offsets = square8Offsets
	}
	var out []core.Coord
	seen := map[[2]int32]bool{}
	for _, o := range offsets {
		nx, okx := s.resolveAxis(c[0]+o[0], s.w)
		ny, oky := s.resolveAxis(c[1]+o[1], s.h)
		if !okx || !oky {
			continue
		}
		key := [2]int32{nx, ny}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, core.Coord{nx, ny})
	}
	return out
}

func (s *Square) Distance(a, b core.Coord) float64 {
	dx := math.Abs(float64(b[0] - a[0]))
	dy := math.Abs(float64(b[1] - a[1]))
	if s.edge == Wrap {
		dx = math.Min(dx, float64(s.w)-dx)
		dy = math.Min(dy, float64(s.h)-dy)
	}
	if s.conn == Connectivity8 {
		return math.Max(dx, dy)
	}
	return dx + dy
}

func (s *Square) CompileRegion(spec RegionSpec) (RegionPlan, error) {
	return compileGeneric(s, spec)
}
