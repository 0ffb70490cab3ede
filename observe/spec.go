// Package observe compiles a declarative ObsSpec into a reusable ObsPlan
// bound to a concrete space and field schema, and executes the plan
// against snapshots to fill caller-owned buffers (spec §4.4).
//
// © 2025 murk authors. MIT License.
package observe

import (
	"github.com/tachyon-beep/murk/core"
)

// Pooling selects the reducer applied over a region's cells (spec §4.4).
// The zero value, NoPooling, means the entry emits one value per region
// cell rather than reducing the region to a single scalar.
type Pooling uint8

const (
	NoPooling Pooling = iota
	PoolMean
	PoolMax
	PoolMin
	PoolSum
)

// TransformKind selects the post-pooling value transform (spec §4.4).
type TransformKind uint8

const (
	Identity TransformKind = iota
	Normalize
)

// Transform is Identity, or Normalize with the given finite range
// (Min < Max required at compile time).
type Transform struct {
	Kind     TransformKind
	Min, Max float64
}

// Dtype is the output element type recorded for an entry. Murk's internal
// math is always float32, and Gather writes a []float32 output buffer for
// every Dtype; Dtype is carried in the spec and in the plan cache key only.
type Dtype uint8

const (
	DtypeF32 Dtype = iota
	DtypeF64
)

// Entry is one field/region/pooling/transform/dtype tuple within an
// ObsSpec (spec §4.4).
type Entry struct {
	Field     core.FieldId
	Region    RegionRef
	Pooling   Pooling
	Transform Transform
	Dtype     Dtype
}

// RegionRef is a lightweight, hashable description of a region, used as
// part of an ObsSpec's compilation cache key. It mirrors space.RegionSpec
// but stays in the observe package so ObsSpec has no import-time
// dependency on how a region's coordinates are ultimately compiled.
type RegionRef struct {
	Kind   uint8
	Min    [5]int32
	Max    [5]int32
	Center [5]int32
	Radius float64
	NDims  int
}

// ObsSpec is the declarative observation request (spec §4.4).
type ObsSpec struct {
	Entries []Entry
}
