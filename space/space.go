// Package space implements Murk's spatial model: pluggable discrete
// lattices with deterministic canonical ordering, neighbour enumeration,
// metric distance, and region compilation (spec §4.2).
//
// No teacher precedent exists for a spatial model in Voskan/arena-cache;
// this package is grounded on the general coordinate/index compilation
// idiom visible across the retrieved pack's world/grid-shaped code (see
// DESIGN.md). It uses only the standard library and core.
//
// © 2025 murk authors. MIT License.
package space

import "github.com/tachyon-beep/murk/core"

// EdgeBehaviour controls how a topology treats out-of-bounds neighbour
// offsets (spec §4.2).
type EdgeBehaviour uint8

const (
	// Absorb drops out-of-bounds neighbours.
	Absorb EdgeBehaviour = iota
	// Clamp pulls an out-of-bounds coordinate to the nearest in-bounds
	// one, unless doing so would violate a topology validity invariant
	// (e.g. FCC parity), in which case it degrades to Absorb.
	Clamp
	// Wrap applies modular arithmetic; only valid where the topology's
	// validity invariant tiles cleanly (e.g. FCC wrap requires even
	// dimensions).
	Wrap
)

// Space is the contract every lattice topology implements (spec §4.2).
type Space interface {
	// Dims returns the coordinate dimensionality.
	Dims() int
	// CellCount returns the total number of valid cells.
	CellCount() int
	// CanonicalOrdering returns the deterministic sequence of all valid
	// coordinates, length CellCount().
	CanonicalOrdering() []core.Coord
	// CanonicalRank returns the dense index of coord in canonical order,
	// or ok=false if coord is out of bounds or violates a topology
	// validity invariant (e.g. FCC parity).
	CanonicalRank(coord core.Coord) (int, bool)
	// Neighbours returns the ordered sequence of valid neighbours of
	// coord; order is part of the contract (stable across calls).
	Neighbours(coord core.Coord) []core.Coord
	// Distance is a metric on the space's neighbour graph: reflexive,
	// symmetric, and triangle-inequal.
	Distance(a, b core.Coord) float64
	// CompileRegion compiles a declarative RegionSpec into a RegionPlan
	// bound to this space.
	CompileRegion(spec RegionSpec) (RegionPlan, error)
}

func coordKey(c core.Coord) string {
	// Cheap, allocation-light key for map-based rank lookups used by
	// topologies where a closed-form O(1) rank formula would be
	// unreasonably intricate (FCC12's parity-interleaved indexing). Not
	// used on any hot per-cell path outside construction.
	b := make([]byte, 0, len(c)*5)
	for _, v := range c {
		b = append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24), ',')
	}
	return string(b)
}
