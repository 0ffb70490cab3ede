package core

// PriorityClass orders commands within a tick; lower values are drained
// first (spec §4.5).
type PriorityClass uint8

// Coord is a generic lattice coordinate. Its length is the space's
// dimensionality; the space package interprets the values.
type Coord []int32

// Clone returns an independent copy of the coordinate.
func (c Coord) Clone() Coord {
	out := make(Coord, len(c))
	copy(out, c)
	return out
}

// Equal reports whether two coordinates have identical dimensionality and
// component values.
func (c Coord) Equal(o Coord) bool {
	if len(c) != len(o) {
		return false
	}
	for i := range c {
		if c[i] != o[i] {
			return false
		}
	}
	return true
}

// PayloadKind distinguishes the two command payload variants of spec §3.
type PayloadKind uint8

const (
	PayloadSetField PayloadKind = iota
	PayloadSetParameter
)

// SetFieldPayload writes a single value into one field at one coordinate.
type SetFieldPayload struct {
	Coord Coord
	Field FieldId
	Value float64
}

// SetParameterPayload sets a world parameter.
type SetParameterPayload struct {
	Key   ParameterKey
	Value float64
}

// Command is the full envelope submitted at ingress (spec §3).
//
// Invariant: if SourceId == nil then SourceSeq must also be nil; ingress
// normalisation enforces this (spec §4.5).
type Command struct {
	Payload          PayloadKind
	SetField         SetFieldPayload
	SetParameter     SetParameterPayload
	ExpiresAfterTick TickId
	SourceId         *uint64
	SourceSeq        *uint64
	PriorityClass    PriorityClass

	// ArrivalSeq is assigned by ingress at submission time: world-local,
	// monotonic, unique per accepted command. Callers never set this.
	ArrivalSeq uint64
}

// Normalize enforces the SourceId/SourceSeq invariant in place.
func (c *Command) Normalize() {
	if c.SourceId == nil {
		c.SourceSeq = nil
	}
}
