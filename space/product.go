package space

import "github.com/tachyon-beep/murk/core"

// Product composes N component spaces into their Cartesian product (spec
// §4.2: "N-way Cartesian product composition"). A coordinate in the
// product is the concatenation of each component's coordinate; dims is
// the sum of component dims; rank is a mixed-radix combination of
// component ranks; neighbours is the union, over components, of varying
// that one component to one of its own neighbours while holding every
// other component fixed; distance is the sum of component distances.
type Product struct {
	components []Space
	dimsPer    []int
	offsets    []int // cumulative coordinate offset per component
	cellCounts []int
	total      int
}

// NewProduct composes two or more component spaces.
func NewProduct(components ...Space) (*Product, error) {
	if len(components) < 2 {
		return nil, core.NewError(core.KindInvalidComposition, "product requires at least 2 component spaces")
	}
	p := &Product{components: components}
	p.dimsPer = make([]int, len(components))
	p.offsets = make([]int, len(components))
	p.cellCounts = make([]int, len(components))
	p.total = 1
	offset := 0
	for i, c := range components {
		if c.CellCount() <= 0 {
			return nil, core.NewError(core.KindInvalidComposition, "product component has zero cells")
		}
		p.dimsPer[i] = c.Dims()
		p.offsets[i] = offset
		offset += c.Dims()
		p.cellCounts[i] = c.CellCount()
		p.total *= c.CellCount()
	}
	return p, nil
}

func (p *Product) Dims() int {
	total := 0
	for _, d := range p.dimsPer {
		total += d
	}
	return total
}

func (p *Product) CellCount() int { return p.total }

// split returns the per-component coordinate slices of a product
// coordinate.
func (p *Product) split(c core.Coord) ([]core.Coord, bool) {
	if len(c) != p.Dims() {
		return nil, false
	}
	parts := make([]core.Coord, len(p.components))
	for i, off := range p.offsets {
		parts[i] = c[off : off+p.dimsPer[i]]
	}
	return parts, true
}

func (p *Product) CanonicalOrdering() []core.Coord {
	out := make([]core.Coord, 0, p.total)
	var rec func(i int, prefix core.Coord)
	rec = func(i int, prefix core.Coord) {
		if i == len(p.components) {
			cp := make(core.Coord, len(prefix))
			copy(cp, prefix)
			out = append(out, cp)
			return
		}
		for _, c := range p.components[i].CanonicalOrdering() {
			rec(i+1, append(prefix, c...))
		}
	}
	rec(0, core.Coord{})
	return out
}

// CanonicalRank combines per-component ranks with mixed-radix weights, in
// component order (first component is most significant), matching the
// nesting order of CanonicalOrdering's recursive enumeration.
func (p *Product) CanonicalRank(c core.Coord) (int, bool) {
	parts, ok := p.split(c)
	if !ok {
		return 0, false
	}
	rank := 0
	for i, comp := range p.components {
		r, ok := comp.CanonicalRank(parts[i])
		if !ok {
			return 0, false
		}
		rank = rank*p.cellCounts[i] + r
	}
	return rank, true
}

// Neighbours returns the union, over components, of substituting that
// component's coordinate with one of its own neighbours while every other
// component stays fixed (an orthogonal-move neighbourhood, the natural
// generalization of e.g. a 2D square grid's axis-aligned moves to N
// composed components).
func (p *Product) Neighbours(c core.Coord) []core.Coord {
	parts, ok := p.split(c)
	if !ok {
		return nil
	}
	var out []core.Coord
	for i, comp := range p.components {
		for _, n := range comp.Neighbours(parts[i]) {
			cand := make(core.Coord, 0, len(c))
			for j, part := range parts {
				if j == i {
					cand = append(cand, n...)
				} else {
					cand = append(cand, part...)
				}
			}
			out = append(out, cand)
		}
	}
	return out
}

// Distance is the sum of per-component distances.
func (p *Product) Distance(a, b core.Coord) float64 {
	aparts, _ := p.split(a)
	bparts, _ := p.split(b)
	total := 0.0
	for i, comp := range p.components {
		total += comp.Distance(aparts[i], bparts[i])
	}
	return total
}

func (p *Product) CompileRegion(spec RegionSpec) (RegionPlan, error) {
	return compileGeneric(p, spec)
}
