package arena

import "github.com/tachyon-beep/murk/core"

// Snapshot is an immutable view of a published arena generation (spec §3).
// It is either borrowed (aliases live arena memory, returned by
// Arena.Snapshot) or owned (deep-cloned, returned by Clone) — owned
// snapshots have a lifetime independent of the arena's ping-pong buffers,
// which is what lets the realtime ring retain more generations than the
// arena's own two staging segments could hold directly.
type Snapshot struct {
	generation core.Generation
	tickId     core.TickId
	paramVer   core.ParameterVersion
	fields     []core.FieldDef
	data       [][]float32 // indexed by FieldId; nil entry = unallocated
	owned      bool
}

// Generation returns the arena generation this snapshot was published from.
func (s Snapshot) Generation() core.Generation { return s.generation }

// TickId returns the tick id the snapshot was published under.
func (s Snapshot) TickId() core.TickId { return s.tickId }

// ParameterVersion returns the parameter version active when published.
func (s Snapshot) ParameterVersion() core.ParameterVersion { return s.paramVer }

// Owned reports whether this snapshot holds independently-owned memory.
func (s Snapshot) Owned() bool { return s.owned }

// Read returns the field's flat slice, or ok=false if the field is
// unallocated (never written — e.g. a PerTick field before the first
// publish). The returned slice has length cell_count*arity (spec §4.1).
func (s Snapshot) Read(fieldId core.FieldId) ([]float32, bool) {
	if int(fieldId) >= len(s.data) {
		return nil, false
	}
	d := s.data[fieldId]
	if d == nil {
		return nil, false
	}
	return d, true
}

// Fields returns the field schema the snapshot was built against.
func (s Snapshot) Fields() []core.FieldDef { return s.fields }

// Clone produces an owned, deep-copied snapshot whose field buffers are
// fully independent of the arena. Used whenever a snapshot must outlive
// the arena's own ping-pong rotation window (spec §3 "owned: deep-cloned
// descriptor + field buffers, independent lifetime").
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		generation: s.generation,
		tickId:     s.tickId,
		paramVer:   s.paramVer,
		fields:     s.fields,
		data:       make([][]float32, len(s.data)),
		owned:      true,
	}
	for i, d := range s.data {
		if d == nil {
			continue
		}
		cp := make([]float32, len(d))
		copy(cp, d)
		out.data[i] = cp
	}
	return out
}
