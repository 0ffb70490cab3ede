// Package arena implements Murk's generational ping-pong arena: low
// overhead per-tick staging and lock-free publish of immutable snapshots
// (spec §4.1).
//
// Grounded on Voskan/arena-cache's internal/arena (thin allocator wrapper)
// and internal/genring (generation rotation, two-phase quiescence). Unlike
// the teacher, this package does not depend on the goexperiment.arenas
// build tag — Murk targets a stable toolchain, so bump allocation is
// reimplemented directly over plain []float32 slices.
//
// © 2025 murk authors. MIT License.
package arena

import (
	"github.com/tachyon-beep/murk/core"
)

// Config describes the field schema and cell universe an Arena serves.
type Config struct {
	Fields    []core.FieldDef
	CellCount int
}

// Validate rejects duplicate field ids (implicit via slice index), bad
// field definitions, and cell-count*arity overflow (spec §4.1 failure
// semantics: "checked for overflow at construction time").
func (c Config) Validate() error {
	if c.CellCount < 0 {
		return core.NewError(core.KindInvalidDimensions, "cell count must be >= 0")
	}
	for _, f := range c.Fields {
		if err := f.Validate(); err != nil {
			return err
		}
		if _, ok := f.BufferLen(c.CellCount); !ok {
			return core.NewError(core.KindCellCountOverflow, "cell_count*arity overflows for field "+f.Name)
		}
	}
	return nil
}

// tickBuffer is one of the two ping-pong segments backing PerTick fields.
type tickBuffer struct {
	data    [][]float32 // indexed by FieldId
	written []bool      // whether Writer() was called this generation
}

// sparseSlot is the current live allocation for one Sparse field.
type sparseSlot struct {
	data       []float32
	generation core.Generation
	written    bool
}

// Arena owns all per-field storage for one world. It is single-writer:
// only the publisher thread (realtime) or the lockstep caller ever calls
// BeginTick/Writer/Publish; snapshot readers hold only const references
// (spec §5).
type Arena struct {
	fields    []core.FieldDef
	cellCount int

	staticData    [][]float32
	staticWritten []bool
	initDone      bool // true once the first tick has published

	buf          [2]tickBuffer
	stagingIdx   int // which buf[] is being written this tick
	publishedIdx int // which buf[] holds the last published generation
	hasPublished bool

	sparse []sparseSlot // indexed by FieldId (only meaningful for Sparse fields)
	// retired ranges awaiting two-phase quiescence before reuse.
	pendingFree  map[int][][]float32 // keyed by length
	reusableFree map[int][][]float32

	nextGeneration core.Generation
	tickInProgress bool

	publishedGeneration core.Generation
	publishedTick       core.TickId
	publishedParamVer   core.ParameterVersion
}

// New validates cfg and constructs an Arena for the given schema.
func New(cfg Config) (*Arena, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Arena{
		fields:       cfg.Fields,
		cellCount:    cfg.CellCount,
		pendingFree:  make(map[int][][]float32),
		reusableFree: make(map[int][][]float32),
	}
	a.staticData = make([][]float32, len(cfg.Fields))
	a.staticWritten = make([]bool, len(cfg.Fields))
	a.buf[0].data = make([][]float32, len(cfg.Fields))
	a.buf[0].written = make([]bool, len(cfg.Fields))
	a.buf[1].data = make([][]float32, len(cfg.Fields))
	a.buf[1].written = make([]bool, len(cfg.Fields))
	a.sparse = make([]sparseSlot, len(cfg.Fields))
	a.publishedIdx = -1
	return a, nil
}

// Fields exposes the schema (read-only) for callers that need to resolve
// names/arities without re-threading the original Config.
func (a *Arena) Fields() []core.FieldDef { return a.fields }

// CellCount returns the cell universe size this arena was built for.
func (a *Arena) CellCount() int { return a.cellCount }

func (a *Arena) bufLen(fieldId core.FieldId) (int, bool) {
	if int(fieldId) >= len(a.fields) {
		return 0, false
	}
	n, ok := a.fields[fieldId].BufferLen(a.cellCount)
	return n, ok
}

// TickGuard is returned by BeginTick; it is the only way to obtain mutable
// writer slices during the in-progress tick.
type TickGuard struct {
	a          *Arena
	generation core.Generation
}

// Generation returns the generation this guard is staging.
func (g *TickGuard) Generation() core.Generation { return g.generation }

// CellCount returns the cell universe size of the arena this guard stages
// into, so callers (the propagator pipeline) don't need to thread the
// arena reference through separately.
func (g *TickGuard) CellCount() int { return g.a.cellCount }

// BeginTick starts staging a new generation. Re-entrant calls (a tick
// already in progress) fail with InvalidState (spec §4.1).
func (a *Arena) BeginTick() (*TickGuard, error) {
	if a.tickInProgress {
		return nil, core.NewError(core.KindInvalidState, "begin_tick called while a tick is already in progress")
	}
	a.tickInProgress = true
	a.nextGeneration++

	// Two-phase quiescence: ranges retired *during the previous tick* (i.e.
	// after the prior publish) move from pending to reusable now — safe
	// because the prior tick's snapshot has already been published, so no
	// reader resolves a handle against a retired range without going
	// through the arena's own read path, which always resolves the
	// *current* sparse slot, never a retired one.
	for n, bufs := range a.pendingFree {
		a.reusableFree[n] = append(a.reusableFree[n], bufs...)
	}
	for n := range a.pendingFree {
		delete(a.pendingFree, n)
	}

	// Stage into whichever ping-pong buffer is NOT currently published.
	if a.hasPublished {
		a.stagingIdx = 1 - a.publishedIdx
	} else {
		a.stagingIdx = 0
	}
	staging := &a.buf[a.stagingIdx]
	for i := range staging.data {
		staging.data[i] = nil
		staging.written[i] = false
	}

	return &TickGuard{a: a, generation: a.nextGeneration}, nil
}

// Writer returns a mutable slice for the field, sized cell_count*arity.
// Static fields are only writable before the first successful publish
// (spec §4.1: "NotWritable if field is Static and begin_tick is not in
// initialisation mode").
func (g *TickGuard) Writer(fieldId core.FieldId) ([]float32, error) {
	a := g.a
	if int(fieldId) >= len(a.fields) {
		return nil, core.NewError(core.KindUnknownField, "unknown field id")
	}
	def := a.fields[fieldId]
	n, ok := a.bufLen(fieldId)
	if !ok {
		return nil, core.NewError(core.KindFieldBufferOverflow, "field buffer length overflow")
	}

	switch def.Mutability {
	case core.Static:
		if a.initDone {
			return nil, core.NewError(core.KindNotWritable, "static field is not writable after initialisation")
		}
		if a.staticData[fieldId] == nil {
			a.staticData[fieldId] = make([]float32, n)
		}
		a.staticWritten[fieldId] = true
		return a.staticData[fieldId], nil

	case core.PerTick:
		staging := &a.buf[a.stagingIdx]
		if staging.data[fieldId] == nil {
			staging.data[fieldId] = make([]float32, n)
		}
		staging.written[fieldId] = true
		return staging.data[fieldId], nil

	case core.Sparse:
		slot := &a.sparse[fieldId]
		if slot.data != nil && slot.generation == g.generation {
			// Same-tick write: reuse existing allocation in place.
			slot.written = true
			return slot.data, nil
		}
		fresh := a.takeSparseBuffer(n)
		if slot.data != nil {
			copy(fresh, slot.data)
			a.retireSparseBuffer(slot.data)
		}
		slot.data = fresh
		slot.generation = g.generation
		slot.written = true
		return slot.data, nil

	default:
		return nil, core.NewError(core.KindUnknownField, "unknown mutability")
	}
}

func (a *Arena) takeSparseBuffer(n int) []float32 {
	if bufs := a.reusableFree[n]; len(bufs) > 0 {
		buf := bufs[len(bufs)-1]
		a.reusableFree[n] = bufs[:len(bufs)-1]
		for i := range buf {
			buf[i] = 0
		}
		return buf
	}
	return make([]float32, n)
}

func (a *Arena) retireSparseBuffer(buf []float32) {
	n := len(buf)
	a.pendingFree[n] = append(a.pendingFree[n], buf)
}

// Publish atomically swaps the published descriptor to the staged
// generation. Requires a tick in progress; clears the flag on success
// (spec §4.1).
func (a *Arena) Publish(tickId core.TickId, paramVer core.ParameterVersion) error {
	if !a.tickInProgress {
		return core.NewError(core.KindInvalidState, "publish called with no tick in progress")
	}
	a.publishedIdx = a.stagingIdx
	a.hasPublished = true
	a.publishedGeneration = a.nextGeneration
	a.publishedTick = tickId
	a.publishedParamVer = paramVer
	a.initDone = true
	a.tickInProgress = false
	return nil
}

// TickInProgress reports whether a tick is currently staged but not yet
// published or discarded.
func (a *Arena) TickInProgress() bool { return a.tickInProgress }

// DiscardTick abandons the currently staged generation without publishing
// (used by the tick engine on propagator failure, spec §4.5 step 6). The
// staged buffer is left as-is; it will be reset again on the next
// BeginTick call.
func (a *Arena) DiscardTick() {
	a.tickInProgress = false
}

// Snapshot returns a borrowed, zero-copy view of the most recently
// published generation. The returned Snapshot aliases arena-owned memory
// and is only valid until the arena's ping-pong buffer backing it is
// reused two generations later — callers that need a longer-lived
// reference (the realtime ring) must call Clone.
func (a *Arena) Snapshot() Snapshot {
	s := Snapshot{
		generation: a.publishedGeneration,
		tickId:     a.publishedTick,
		paramVer:   a.publishedParamVer,
		fields:     a.fields,
		data:       make([][]float32, len(a.fields)),
	}
	if !a.hasPublished {
		return s
	}
	published := &a.buf[a.publishedIdx]
	for i, def := range a.fields {
		switch def.Mutability {
		case core.Static:
			if a.staticWritten[i] {
				s.data[i] = a.staticData[i]
			}
		case core.PerTick:
			if published.written[i] {
				s.data[i] = published.data[i]
			}
		case core.Sparse:
			if a.sparse[i].written {
				s.data[i] = a.sparse[i].data
			}
		}
	}
	return s
}
