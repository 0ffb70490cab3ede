package propagator

import (
	"math"

	"github.com/tachyon-beep/murk/core"
	"github.com/tachyon-beep/murk/internal/arena"
	"github.com/tachyon-beep/murk/space"
)

// declaration is the one-time snapshot of a propagator's reads/writes
// (spec §4.3: "Snapshot each propagator's declarations exactly once into
// a local metadata vector; all subsequent passes operate on that
// snapshot" — propagators are never re-queried after pipeline
// construction, so a propagator that changed its mind about its own
// schema mid-run cannot desync the plan from reality).
type declaration struct {
	name          string
	reads         FieldSet
	readsPrevious FieldSet
	writes        []FieldWrite
}

// Pipeline is the validated, ordered sequence of propagators a world
// runs every tick, together with the precomputed read-resolution plan
// (spec §4.3).
type Pipeline struct {
	propagators []Propagator
	decls       []declaration
	dt          float64

	// resolveStaging[i][field] == true means propagator i's read of
	// field should route to the current tick's staging buffer (an
	// earlier propagator in the pipeline already wrote it this tick);
	// false means it routes to the previous published snapshot.
	resolveStaging []map[core.FieldId]bool

	// writeModes maps every written field to its committed WriteMode,
	// used to decide whether a staging buffer is pre-seeded.
	writeModes map[core.FieldId]WriteMode
}

// New validates props against sp and dt and builds the read-resolution
// plan (spec §4.3 pipeline validation). Validation runs exactly once, at
// world construction time — never per tick.
func New(props []Propagator, dt float64, sp space.Space) (*Pipeline, error) {
	if len(props) == 0 {
		return nil, core.NewError(core.KindEmptyPipeline, "propagator pipeline must not be empty")
	}
	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt <= 0 {
		return nil, core.NewError(core.KindDtOutOfRange, "dt must be finite and > 0")
	}

	decls := make([]declaration, len(props))
	writeOwner := make(map[core.FieldId]int)
	writeModes := make(map[core.FieldId]WriteMode)
	minMaxDt := math.Inf(1)

	for i, p := range props {
		d := declaration{
			name:          p.Name(),
			reads:         p.Reads(),
			readsPrevious: p.ReadsPrevious(),
			writes:        p.Writes(),
		}
		decls[i] = d

		for _, w := range d.writes {
			if owner, exists := writeOwner[w.Field]; exists {
				return nil, core.NewError(core.KindWriteConflict,
					"field written by both "+decls[owner].name+" and "+d.name)
			}
			writeOwner[w.Field] = i
			writeModes[w.Field] = w.Mode
		}

		m := p.MaxDt(sp)
		if math.IsNaN(m) {
			return nil, core.NewError(core.KindDtOutOfRange, "propagator "+d.name+" returned NaN max_dt")
		}
		if m < minMaxDt {
			minMaxDt = m
		}
	}

	if dt > minMaxDt {
		return nil, core.NewError(core.KindDtOutOfRange, "configured dt exceeds min(max_dt) across propagators")
	}

	// Build the per-propagator read-resolution plan: a read resolves to
	// staging iff some propagator BEFORE this one in pipeline order
	// writes that field (spec §4.3: "route to the current staging
	// buffer if an earlier propagator writes it, else to the previous
	// snapshot").
	resolveStaging := make([]map[core.FieldId]bool, len(props))
	writtenSoFar := make(map[core.FieldId]bool)
	for i, d := range decls {
		resolveStaging[i] = make(map[core.FieldId]bool, len(d.reads))
		for f := range d.reads {
			resolveStaging[i][f] = writtenSoFar[f]
		}
		for _, w := range d.writes {
			writtenSoFar[w.Field] = true
		}
	}

	return &Pipeline{
		propagators:    props,
		decls:          decls,
		dt:             dt,
		resolveStaging: resolveStaging,
		writeModes:     writeModes,
	}, nil
}

// ValidateFields checks that every field referenced by any propagator's
// reads/readsPrevious/writes exists in the schema (spec §4.3: "Verify
// every referenced field exists"). Split from New so the caller — world
// construction, which already knows the full field schema — can supply
// it after New has done the schema-independent checks.
func (p *Pipeline) ValidateFields(fieldCount int) error {
	check := func(f core.FieldId) error {
		if int(f) >= fieldCount {
			return core.NewError(core.KindUndefinedField, "propagator references undefined field")
		}
		return nil
	}
	for _, d := range p.decls {
		for f := range d.reads {
			if err := check(f); err != nil {
				return err
			}
		}
		for f := range d.readsPrevious {
			if err := check(f); err != nil {
				return err
			}
		}
		for _, w := range d.writes {
			if err := check(w.Field); err != nil {
				return err
			}
		}
	}
	return nil
}

// Dt returns the pipeline's validated time-step.
func (p *Pipeline) Dt() float64 { return p.dt }

// Run executes every propagator in declared order against guard, seeding
// Incremental staging buffers from previous before each propagator's Step
// runs (spec §4.3, §4.5 step 5). It returns the first propagator error,
// wrapped with KindPropagatorFailed; the caller (engine) is responsible
// for discarding the staged tick on error.
func (p *Pipeline) Run(guard *arena.TickGuard, previous arena.Snapshot, sp space.Space) error {
	for i, prop := range p.propagators {
		d := p.decls[i]
		for _, w := range d.writes {
			buf, err := guard.Writer(w.Field)
			if err != nil {
				return core.Wrap(core.KindPropagatorFailed, "propagator "+d.name+" could not acquire writer", err)
			}
			if w.Mode == Incremental {
				if prev, ok := previous.Read(w.Field); ok {
					copy(buf, prev)
				}
			}
		}
		ctx := &stepContext{
			guard:    guard,
			previous: previous,
			sp:       sp,
			dt:       p.dt,
			decl:     d,
			resolve:  p.resolveStaging[i],
		}
		if err := prop.Step(ctx); err != nil {
			return core.Wrap(core.KindPropagatorFailed, "propagator "+d.name+" step failed", err)
		}
	}
	return nil
}

// stepContext implements Context for one propagator's Step call.
type stepContext struct {
	guard    *arena.TickGuard
	previous arena.Snapshot
	sp       space.Space
	dt       float64
	decl     declaration
	resolve  map[core.FieldId]bool
}

func (c *stepContext) Space() space.Space { return c.sp }
func (c *stepContext) CellCount() int     { return c.guard.CellCount() }
func (c *stepContext) Dt() float64        { return c.dt }

func (c *stepContext) Arity(field core.FieldId) int {
	fields := c.previous.Fields()
	if int(field) >= len(fields) {
		return 1
	}
	return fields[field].Arity
}

func (c *stepContext) Read(field core.FieldId) ([]float32, bool) {
	if c.resolve[field] {
		buf, err := c.guard.Writer(field)
		if err != nil {
			return nil, false
		}
		return buf, true
	}
	return c.previous.Read(field)
}

func (c *stepContext) ReadPrevious(field core.FieldId) ([]float32, bool) {
	return c.previous.Read(field)
}

func (c *stepContext) Write(field core.FieldId) ([]float32, error) {
	return c.guard.Writer(field)
}
