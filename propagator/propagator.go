// Package propagator defines the propagator contract and pipeline
// validation of spec §4.3: declared reads/writes, write-mode contract,
// and the one-time read-resolution plan every tick executes against.
//
// The validation flow mirrors the teacher's functional-options pattern
// (pkg/config.go's applyOptions: apply, then validate every invariant
// once, bail out with a descriptive error) generalized from "one config
// struct" to "an ordered list of propagator declarations".
//
// © 2025 murk authors. MIT License.
package propagator

import (
	"github.com/tachyon-beep/murk/core"
	"github.com/tachyon-beep/murk/space"
)

// WriteMode controls whether a propagator's staging buffer for a field is
// seeded from the previous generation (Incremental) or left for the
// propagator to fully overwrite (Full) (spec §4.3).
type WriteMode uint8

const (
	// Full requires the propagator to overwrite every cell of the field.
	Full WriteMode = iota
	// Incremental seeds the staging buffer from the previous generation's
	// snapshot before Step runs, so the propagator may mutate in place.
	Incremental
)

// FieldWrite pairs a field id with the write mode the propagator commits
// to for that field.
type FieldWrite struct {
	Field core.FieldId
	Mode  WriteMode
}

// FieldSet is an unordered set of field ids, the return type of Reads and
// ReadsPrevious.
type FieldSet map[core.FieldId]struct{}

// NewFieldSet builds a FieldSet from a list of field ids.
func NewFieldSet(ids ...core.FieldId) FieldSet {
	s := make(FieldSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is a member.
func (s FieldSet) Has(id core.FieldId) bool {
	_, ok := s[id]
	return ok
}

// Context is the read/write surface a propagator's Step sees. Reads for a
// field declared in reads() resolve to either the current tick's staging
// buffer (if an earlier propagator in the pipeline already wrote it) or
// the previous published snapshot, per the pipeline's read-resolution
// plan (spec §4.3) — the propagator itself never knows which.
type Context interface {
	// Space returns the world's spatial model, for propagators whose
	// step depends on neighbour structure or distance.
	Space() space.Space
	// CellCount is the space's cell universe size.
	CellCount() int
	// Dt is the configured tick time-step.
	Dt() float64
	// Arity returns the per-cell width of field, so propagators can
	// index vector fields without re-threading the schema themselves.
	Arity(field core.FieldId) int
	// Read resolves a declared reads() field per the pipeline's plan.
	// ok is false if the field was never written (unallocated).
	Read(field core.FieldId) (data []float32, ok bool)
	// ReadPrevious always resolves to the previous published snapshot,
	// regardless of whether an earlier propagator wrote the field this
	// tick — used by propagators that declare reads_previous().
	ReadPrevious(field core.FieldId) (data []float32, ok bool)
	// Write returns the mutable staging slice for a field this
	// propagator declared in writes(). For Incremental fields the slice
	// is pre-seeded from the previous snapshot; for Full fields its
	// initial contents are unspecified and must be fully overwritten.
	Write(field core.FieldId) ([]float32, error)
}

// Propagator is one stage of the tick pipeline (spec §4.3). Implementations
// must be side-effect free outside of Step, and Step must not retain any
// slice returned by Context beyond the call.
type Propagator interface {
	// Name identifies the propagator for error messages and metrics.
	Name() string
	// Reads returns the fields this propagator reads that may also be
	// written earlier in the pipeline (current-tick visibility).
	Reads() FieldSet
	// ReadsPrevious returns the fields this propagator reads strictly
	// from the previous generation, bypassing current-tick writes.
	ReadsPrevious() FieldSet
	// Writes returns the fields this propagator writes and the write
	// mode contract for each.
	Writes() []FieldWrite
	// MaxDt returns the stability bound for this propagator given the
	// space it will run against (e.g. a CFL condition).
	MaxDt(sp space.Space) float64
	// Step executes one tick's worth of work.
	Step(ctx Context) error
}
