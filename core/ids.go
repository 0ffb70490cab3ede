// Package core defines the identifiers, field schema, command/receipt
// envelopes, and error taxonomy shared by every other Murk package.
//
// © 2025 murk authors. MIT License.
package core

// TickId is a monotonically increasing tick counter. It never wraps in
// practice (spec §3) — all comparisons should use equality or ordering on
// the raw uint64, never modular arithmetic.
type TickId uint64

// FieldId is a dense index into a world's field schema, assigned at
// construction time and stable for the lifetime of the world.
type FieldId uint32

// ParameterKey identifies a world parameter (a scalar knob set via
// SetParameter commands, independent of the per-cell field layout).
type ParameterKey uint32

// ParameterVersion counts SetParameter applications; it is bumped whenever
// any parameter changes and travels alongside published snapshots so
// observers can detect parameter drift.
type ParameterVersion uint64

// Generation identifies a version of the authoritative field state inside
// the arena. Comparisons against Generation MUST use equality only — the
// counter is monotonic but staleness is never inferred from ordering
// (spec §4.1: "all comparisons use equality, never <").
type Generation uint64
