package lockstep

import (
	"testing"

	"github.com/tachyon-beep/murk/core"
	"github.com/tachyon-beep/murk/engine"
	"github.com/tachyon-beep/murk/internal/arena"
	"github.com/tachyon-beep/murk/propagator"
	"github.com/tachyon-beep/murk/space"
	"github.com/tachyon-beep/murk/stdprop"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	sp, err := space.NewSquare(2, 2, space.Connectivity4, space.Absorb)
	if err != nil {
		t.Fatal(err)
	}
	fields := []core.FieldDef{{Name: "f", Kind: core.FieldScalar, Arity: 1, Mutability: core.PerTick}}
	a, err := arena.New(arena.Config{Fields: fields, CellCount: sp.CellCount()})
	if err != nil {
		t.Fatal(err)
	}
	pl, err := propagator.New([]propagator.Propagator{stdprop.SetConstant{Field: 0, Value: 2}}, 1.0, sp)
	if err != nil {
		t.Fatal(err)
	}
	if err := pl.ValidateFields(len(fields)); err != nil {
		t.Fatal(err)
	}
	return New(engine.NewWorld(a, pl, sp, engine.DefaultRollbackLimit))
}

func TestStepSyncPublishesASnapshot(t *testing.T) {
	r := newTestRuntime(t)
	res, err := r.StepSync(nil)
	if err != nil {
		t.Fatal(err)
	}
	data, ok := res.Snapshot.Read(0)
	if !ok {
		t.Fatal("expected field 0 to be published after one step")
	}
	for _, v := range data {
		if v != 2 {
			t.Fatalf("cell = %v, want 2", v)
		}
	}
	if res.Metrics.RolledBack {
		t.Fatal("expected no rollback")
	}
}

func TestStepSyncAtPinsTheAppliedTickId(t *testing.T) {
	r := newTestRuntime(t)
	res, err := r.StepSyncAt(nil, 42)
	if err != nil {
		t.Fatal(err)
	}
	if res.Snapshot.TickId() != 42 {
		t.Fatalf("TickId = %v, want 42", res.Snapshot.TickId())
	}
}

func TestStepSyncAssignsArrivalSeqToSubmittedCommands(t *testing.T) {
	r := newTestRuntime(t)
	cmds := []*core.Command{
		{Payload: core.PayloadSetField, SetField: core.SetFieldPayload{Coord: core.Coord{0, 0}, Field: 0, Value: 1}},
		{Payload: core.PayloadSetField, SetField: core.SetFieldPayload{Coord: core.Coord{1, 1}, Field: 0, Value: 1}},
	}
	if _, err := r.StepSync(cmds); err != nil {
		t.Fatal(err)
	}
	if cmds[0].ArrivalSeq == cmds[1].ArrivalSeq {
		t.Fatal("expected distinct arrival_seq values assigned to each submitted command")
	}
}
