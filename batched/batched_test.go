package batched

import (
	"testing"

	"github.com/tachyon-beep/murk/core"
	"github.com/tachyon-beep/murk/engine"
	"github.com/tachyon-beep/murk/internal/arena"
	"github.com/tachyon-beep/murk/observe"
	"github.com/tachyon-beep/murk/propagator"
	"github.com/tachyon-beep/murk/space"
	"github.com/tachyon-beep/murk/stdprop"
)

var testFields = []core.FieldDef{{Name: "f", Kind: core.FieldScalar, Arity: 1, Mutability: core.PerTick}}

func newWorld(t *testing.T, fail bool) *engine.World {
	t.Helper()
	sp, err := space.NewSquare(2, 2, space.Connectivity4, space.Absorb)
	if err != nil {
		t.Fatal(err)
	}
	var props []propagator.Propagator
	if fail {
		props = []propagator.Propagator{stdprop.SetConstant{Field: 0, Value: 1}, failAlways{}}
	} else {
		props = []propagator.Propagator{stdprop.SetConstant{Field: 0, Value: 1}}
	}
	a, err := arena.New(arena.Config{Fields: testFields, CellCount: sp.CellCount()})
	if err != nil {
		t.Fatal(err)
	}
	pl, err := propagator.New(props, 1.0, sp)
	if err != nil {
		t.Fatal(err)
	}
	return engine.NewWorld(a, pl, sp, engine.DefaultRollbackLimit)
}

// failAlways declares no writes so it doesn't conflict with SetConstant,
// and always fails Step, to exercise per-world error isolation.
type failAlways struct{}

func (failAlways) Name() string                       { return "fail_always" }
func (failAlways) Reads() propagator.FieldSet         { return propagator.NewFieldSet() }
func (failAlways) ReadsPrevious() propagator.FieldSet { return propagator.NewFieldSet() }
func (failAlways) Writes() []propagator.FieldWrite    { return nil }
func (failAlways) MaxDt(sp space.Space) float64       { return 1e9 }
func (failAlways) Step(ctx propagator.Context) error {
	return core.NewError(core.KindPropagatorFailed, "always fails")
}

func wholeSpacePlan(t *testing.T, sp space.Space) *observe.ObsPlan {
	t.Helper()
	c := observe.NewCompiler()
	spec := observe.ObsSpec{Entries: []observe.Entry{{Field: 0, Region: observe.RegionRef{Kind: uint8(space.RegionAll)}}}}
	plan, err := c.Compile(spec, sp, testFields, observe.BindKey{})
	if err != nil {
		t.Fatal(err)
	}
	return plan
}

func TestStepAndObserveFillsEveryWorldsSlice(t *testing.T) {
	w0 := newWorld(t, false)
	w1 := newWorld(t, false)
	b := New([]*engine.World{w0, w1})

	sp, err := space.NewSquare(2, 2, space.Connectivity4, space.Absorb)
	if err != nil {
		t.Fatal(err)
	}
	plan := wholeSpacePlan(t, sp)

	output := make([]float32, 2*plan.OutputLen())
	mask := make([]uint8, 2*plan.MaskLen())
	cmds := [][]*core.Command{nil, nil}
	_, err = b.StepAndObserve(cmds, plan, observe.BindKey{}, output, mask)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range output {
		if v != 1 {
			t.Fatalf("expected every cell to be 1 after SetConstant, got %v", v)
		}
	}
}

func TestStepAndObserveAnnotatesPerWorldFailureWithoutCorruptingOthers(t *testing.T) {
	w0 := newWorld(t, true)  // fails
	w1 := newWorld(t, false) // succeeds
	b := New([]*engine.World{w0, w1})

	sp, err := space.NewSquare(2, 2, space.Connectivity4, space.Absorb)
	if err != nil {
		t.Fatal(err)
	}
	plan := wholeSpacePlan(t, sp)

	output := make([]float32, 2*plan.OutputLen())
	mask := make([]uint8, 2*plan.MaskLen())
	cmds := [][]*core.Command{nil, nil}
	results, err := b.StepAndObserve(cmds, plan, observe.BindKey{}, output, mask)
	if err == nil {
		t.Fatal("expected an error from world 0's failing propagator")
	}
	stepErr, ok := err.(*StepError)
	if !ok {
		t.Fatalf("expected a *StepError, got %T", err)
	}
	if stepErr.WorldIndex != 0 {
		t.Fatalf("WorldIndex = %d, want 0", stepErr.WorldIndex)
	}
	if len(results) != 2 {
		t.Fatalf("expected results for both worlds, got %d", len(results))
	}
	if !results[0].RolledBack {
		t.Fatal("expected world 0's result to report RolledBack")
	}
}

func TestValidatePlanRejectsUndersizedBuffers(t *testing.T) {
	w0 := newWorld(t, false)
	b := New([]*engine.World{w0})
	sp, err := space.NewSquare(2, 2, space.Connectivity4, space.Absorb)
	if err != nil {
		t.Fatal(err)
	}
	plan := wholeSpacePlan(t, sp)
	err = b.ValidatePlan(plan, observe.BindKey{}, make([]float32, 1), make([]uint8, 1))
	if err == nil {
		t.Fatal("expected ValidatePlan to reject undersized buffers")
	}
}

func TestValidatePlanRejectsStaleBindKey(t *testing.T) {
	w0 := newWorld(t, false)
	b := New([]*engine.World{w0})
	sp, err := space.NewSquare(2, 2, space.Connectivity4, space.Absorb)
	if err != nil {
		t.Fatal(err)
	}
	plan := wholeSpacePlan(t, sp)
	output := make([]float32, plan.OutputLen())
	mask := make([]uint8, plan.MaskLen())
	err = b.ValidatePlan(plan, observe.BindKey{WorldGeneration: 99}, output, mask)
	if err == nil {
		t.Fatal("expected ValidatePlan to reject a stale bind key")
	}
}
