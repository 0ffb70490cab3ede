package core

import "math"

// FieldKind distinguishes the shape of a field's per-cell value.
type FieldKind uint8

const (
	FieldScalar FieldKind = iota
	FieldVector
	FieldCategorical
)

// Mutability controls how a field participates in the per-tick arena
// staging contract (spec §3, §4.1).
type Mutability uint8

const (
	// Static fields are written only during world initialisation and are
	// read-only afterward.
	Static Mutability = iota
	// PerTick fields are fully overwritten every tick.
	PerTick
	// Sparse fields are copy-on-write between ticks: a write takes a fresh
	// allocation only if the previous generation's allocation is still
	// live, otherwise it is reused in place.
	Sparse
)

// EdgeBehaviour is reused here as a label attached to a field definition
// purely for documentation/introspection; the authoritative edge-behaviour
// enforcement lives in the space package. Kept as an alias-free copy to
// avoid a core -> space import cycle (space depends on core for FieldId).
type EdgeBehaviour uint8

const (
	EdgeAbsorb EdgeBehaviour = iota
	EdgeClamp
	EdgeWrap
)

// Bounds is an optional (min, max) clamp applied to a field's values. Both
// ends must be finite and min <= max.
type Bounds struct {
	Min, Max float64
}

func (b Bounds) valid() bool {
	return !math.IsNaN(b.Min) && !math.IsNaN(b.Max) &&
		!math.IsInf(b.Min, 0) && !math.IsInf(b.Max, 0) &&
		b.Min <= b.Max
}

// FieldDef describes one field in a world's schema.
type FieldDef struct {
	Name       string
	Kind       FieldKind
	Arity      int // vector width; 1 for scalar; bin count for categorical
	Mutability Mutability
	Bounds     *Bounds // nil = unbounded
	Edge       EdgeBehaviour
	Units      string
}

// Validate rejects zero-arity vectors, zero-bin categoricals, and inverted
// bounds (spec §3).
func (f FieldDef) Validate() error {
	if f.Name == "" {
		return NewError(KindInvalidDimensions, "field name must not be empty")
	}
	switch f.Kind {
	case FieldScalar:
		if f.Arity != 1 {
			return NewError(KindInvalidDimensions, "scalar field must have arity 1")
		}
	case FieldVector:
		if f.Arity < 1 {
			return NewError(KindInvalidDimensions, "vector field must have arity >= 1")
		}
	case FieldCategorical:
		if f.Arity < 1 {
			return NewError(KindInvalidDimensions, "categorical field must have >= 1 bin")
		}
	default:
		return NewError(KindInvalidDimensions, "unknown field kind")
	}
	if f.Bounds != nil && !f.Bounds.valid() {
		return NewError(KindInvertedBounds, "field bounds must be finite with min <= max")
	}
	return nil
}

// BufferLen returns the length of the flat f32 slice backing one generation
// of this field given the space's cell count, i.e. cell_count * arity.
// ok is false on overflow.
func (f FieldDef) BufferLen(cellCount int) (n int, ok bool) {
	if cellCount < 0 || f.Arity < 0 {
		return 0, false
	}
	// overflow check performed in terms of int64 to detect wraparound on
	// 32-bit platforms as well as int overflow on 64-bit ones.
	total := int64(cellCount) * int64(f.Arity)
	if cellCount != 0 && total/int64(cellCount) != int64(f.Arity) {
		return 0, false
	}
	if total < 0 || total > int64(int(^uint(0)>>1)) {
		return 0, false
	}
	return int(total), true
}
