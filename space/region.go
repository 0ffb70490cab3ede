package space

import "github.com/tachyon-beep/murk/core"

// RegionKind tags which RegionSpec variant is populated (spec §4.2).
type RegionKind uint8

const (
	RegionAll RegionKind = iota
	RegionRect
	RegionDisk
	RegionNeighbours
	RegionCoords
)

// RegionSpec is the declarative description of a region to compile (spec
// §4.2). Only the fields relevant to Kind are read.
type RegionSpec struct {
	Kind RegionKind

	// Rect
	Min, Max core.Coord

	// Disk / Neighbours
	Center core.Coord
	Radius float64 // Disk: metric distance; Neighbours: hop count (truncated to int)

	// Coords
	Coords []core.Coord
}

// RegionPlan is the compiled form of a RegionSpec (spec §4.2): a
// deterministic coord list, a parallel tensor-index list for dense
// packing, a validity mask (1 = real cell, 0 = padding), and the bounding
// shape the output positions (the Coords/ValidMask slice index) are
// relative to.
//
// TensorIndex[i] is the field-buffer index to read for Coords[i] — its
// canonical rank, the same index engine.applySetField and every
// propagator write through — NOT the output position i itself. The two
// coincide only for RegionAll (where canonical rank happens to equal
// enumeration order). -1 marks a padding entry (ValidMask[i] == 0).
type RegionPlan struct {
	Coords      []core.Coord
	TensorIndex []int
	ValidMask   []uint8
	Shape       []int
}

// Len returns the number of entries (real + padding) in the plan.
func (p RegionPlan) Len() int { return len(p.Coords) }

// compileAll builds the RegionAll plan: coords == the space's canonical
// ordering, in the same order (spec §4.2 invariant: "region compilation
// with All produces coords whose set equals canonical_ordering()'s set").
func compileAll(sp Space) RegionPlan {
	order := sp.CanonicalOrdering()
	plan := RegionPlan{
		Coords:      make([]core.Coord, len(order)),
		TensorIndex: make([]int, len(order)),
		ValidMask:   make([]uint8, len(order)),
		Shape:       []int{len(order)},
	}
	for i, c := range order {
		plan.Coords[i] = c
		// CanonicalOrdering()[CanonicalRank(c)] == c (space's canonical
		// round-trip invariant), so rank == i here; computed explicitly
		// anyway so this plan follows the same rank-lookup shape as every
		// other compile* function.
		rank, _ := sp.CanonicalRank(c)
		plan.TensorIndex[i] = rank
		plan.ValidMask[i] = 1
	}
	return plan
}

// compileRect iterates the inclusive hyper-rectangle [min,max] in row-major
// order (last dimension fastest) and marks cells invalid-in-space as
// padding rather than dropping them, so the output always has exactly the
// rectangular bounding shape (spec §4.2: "valid_mask ... padding for
// non-rectangular regions embedded in rectangular output tensors").
func compileRect(sp Space, min, max core.Coord) (RegionPlan, error) {
	if len(min) != sp.Dims() || len(max) != sp.Dims() {
		return RegionPlan{}, core.NewError(core.KindInvalidRegion, "rect bounds dimensionality mismatch")
	}
	shape := make([]int, len(min))
	total := 1
	for i := range min {
		if max[i] < min[i] {
			return RegionPlan{}, core.NewError(core.KindInvalidRegion, "rect max < min")
		}
		shape[i] = int(max[i]-min[i]) + 1
		total *= shape[i]
	}

	plan := RegionPlan{
		Coords:      make([]core.Coord, total),
		TensorIndex: make([]int, total),
		ValidMask:   make([]uint8, total),
		Shape:       shape,
	}

	idx := make([]int32, len(min))
	for i := 0; i < total; i++ {
		c := make(core.Coord, len(min))
		for d := range min {
			c[d] = min[d] + idx[d]
		}
		plan.Coords[i] = c
		if rank, ok := sp.CanonicalRank(c); ok {
			plan.TensorIndex[i] = rank
			plan.ValidMask[i] = 1
		} else {
			plan.TensorIndex[i] = -1
		}
		// odometer increment, last dimension fastest
		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if int(idx[d]) < shape[d] {
				break
			}
			idx[d] = 0
		}
	}
	return plan, nil
}

// compileDisk enumerates the bounding box of radius around center and
// keeps cells within metric distance <= radius, embedding the result in a
// dense (2r+1)^dims tensor with padding outside the disk (mirrors
// compileRect's embedding rationale).
func compileDisk(sp Space, center core.Coord, radius float64) (RegionPlan, error) {
	if len(center) != sp.Dims() {
		return RegionPlan{}, core.NewError(core.KindInvalidRegion, "disk center dimensionality mismatch")
	}
	if radius < 0 {
		return RegionPlan{}, core.NewError(core.KindInvalidRegion, "disk radius must be >= 0")
	}
	r := int32(radius)
	if float64(r) < radius {
		r++ // ceil, so the bounding box never excludes a valid boundary cell
	}
	min := make(core.Coord, len(center))
	max := make(core.Coord, len(center))
	for i := range center {
		min[i] = center[i] - r
		max[i] = center[i] + r
	}
	shape := make([]int, len(min))
	total := 1
	for i := range min {
		shape[i] = int(max[i]-min[i]) + 1
		total *= shape[i]
	}

	plan := RegionPlan{
		Coords:      make([]core.Coord, total),
		TensorIndex: make([]int, total),
		ValidMask:   make([]uint8, total),
		Shape:       shape,
	}
	idx := make([]int32, len(min))
	for i := 0; i < total; i++ {
		c := make(core.Coord, len(min))
		for d := range min {
			c[d] = min[d] + idx[d]
		}
		plan.Coords[i] = c
		if rank, ok := sp.CanonicalRank(c); ok && sp.Distance(center, c) <= radius {
			plan.TensorIndex[i] = rank
			plan.ValidMask[i] = 1
		} else {
			plan.TensorIndex[i] = -1
		}
		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if int(idx[d]) < shape[d] {
				break
			}
			idx[d] = 0
		}
	}
	return plan, nil
}

// compileNeighbours performs a breadth-first search out to the given hop
// radius using the topology's own Neighbours(), producing a flat (non
// rectangular-embedded) list — there is no natural dense bounding shape
// for a graph-distance ball, so the plan's shape is just its own length.
func compileNeighbours(sp Space, center core.Coord, hops int) (RegionPlan, error) {
	if _, ok := sp.CanonicalRank(center); !ok {
		return RegionPlan{}, core.NewError(core.KindInvalidRegion, "neighbours center out of bounds")
	}
	if hops < 0 {
		return RegionPlan{}, core.NewError(core.KindInvalidRegion, "neighbours radius must be >= 0")
	}

	visited := map[string]bool{coordKey(center): true}
	frontier := []core.Coord{center}
	var out []core.Coord
	out = append(out, center)

	for h := 0; h < hops; h++ {
		var next []core.Coord
		for _, c := range frontier {
			for _, n := range sp.Neighbours(c) {
				k := coordKey(n)
				if visited[k] {
					continue
				}
				visited[k] = true
				next = append(next, n)
				out = append(out, n)
			}
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}

	plan := RegionPlan{
		Coords:      out,
		TensorIndex: make([]int, len(out)),
		ValidMask:   make([]uint8, len(out)),
		Shape:       []int{len(out)},
	}
	for i, c := range out {
		if rank, ok := sp.CanonicalRank(c); ok {
			plan.TensorIndex[i] = rank
			plan.ValidMask[i] = 1
		} else {
			plan.TensorIndex[i] = -1
		}
	}
	return plan, nil
}

// compileGeneric dispatches a RegionSpec to the appropriate compiler. Every
// topology's CompileRegion delegates here so the region-compilation logic
// is written once and shared (spec §4.2 applies identically across
// topologies; only CanonicalRank/Neighbours/Distance differ per space).
func compileGeneric(sp Space, spec RegionSpec) (RegionPlan, error) {
	switch spec.Kind {
	case RegionAll:
		return compileAll(sp), nil
	case RegionRect:
		return compileRect(sp, spec.Min, spec.Max)
	case RegionDisk:
		return compileDisk(sp, spec.Center, spec.Radius)
	case RegionNeighbours:
		return compileNeighbours(sp, spec.Center, int(spec.Radius))
	case RegionCoords:
		return compileCoords(sp, spec.Coords)
	default:
		return RegionPlan{}, core.NewError(core.KindInvalidRegion, "unknown region spec kind")
	}
}

// compileCoords takes an explicit list verbatim; coordinates outside the
// space are kept in the plan but marked invalid so callers can see exactly
// which requested coordinate failed, rather than the list silently
// shrinking.
func compileCoords(sp Space, coords []core.Coord) (RegionPlan, error) {
	plan := RegionPlan{
		Coords:      make([]core.Coord, len(coords)),
		TensorIndex: make([]int, len(coords)),
		ValidMask:   make([]uint8, len(coords)),
		Shape:       []int{len(coords)},
	}
	for i, c := range coords {
		plan.Coords[i] = c
		if rank, ok := sp.CanonicalRank(c); ok {
			plan.TensorIndex[i] = rank
			plan.ValidMask[i] = 1
		} else {
			plan.TensorIndex[i] = -1
		}
	}
	return plan, nil
}
