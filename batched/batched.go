// Package batched steps N independent worlds together against a single
// observation plan compiled once against world 0 (spec §4.8), using
// errgroup for per-world concurrency — the direct generalization of the
// teacher's per-shard independence model (each shard is already
// independently lockable; batched treats each World the same way).
//
// © 2025 murk authors. MIT License.
package batched

import (
	"golang.org/x/sync/errgroup"

	"github.com/tachyon-beep/murk/core"
	"github.com/tachyon-beep/murk/engine"
	"github.com/tachyon-beep/murk/observe"
)

// StepError annotates a per-world step failure with the world's index so
// callers can tell which of N worlds failed without the other worlds'
// results being corrupted (spec §4.8: "Per-world step errors are
// annotated with world index and returned without corrupting the
// others' receipts").
type StepError struct {
	WorldIndex int
	Err        error
}

func (e *StepError) Error() string { return e.Err.Error() }
func (e *StepError) Unwrap() error { return e.Err }

// Batch owns N worlds stepped together and one observation plan compiled
// against world 0's schema/space.
type Batch struct {
	worlds []*engine.World
}

// New constructs a Batch over worlds. Every world must share an
// identical field schema and space topology (spec §4.8); this is not
// re-validated here since it is a construction-time invariant of how the
// caller builds each world — ValidatePlan below is what actually checks
// plan compatibility before every step.
func New(worlds []*engine.World) *Batch {
	return &Batch{worlds: worlds}
}

// Len returns the number of worlds in the batch.
func (b *Batch) Len() int { return len(b.worlds) }

// ValidatePlan runs spec §4.8's atomicity pre-flight: the plan must bind
// to world 0's current generation triple, and the output/mask buffers
// must be exactly plan.OutputLen()/MaskLen() per world. All of this is
// checked before any world advances.
func (b *Batch) ValidatePlan(plan *observe.ObsPlan, bind observe.BindKey, output []float32, mask []uint8) error {
	n := len(b.worlds)
	if len(output) != n*plan.OutputLen() || len(mask) != n*plan.MaskLen() {
		return core.NewError(core.KindInvalidSpec, "batched: output/mask buffer length mismatch")
	}
	if bind != plan.Bind() {
		return core.NewError(core.KindPlanInvalidated, "batched: bind key no longer matches world 0's current generation")
	}
	return nil
}

// StepAndObserve steps every world with its corresponding command batch,
// then gathers plan against every resulting snapshot into a contiguous
// (N x OutputLen) buffer (spec §4.8). The pre-flight in ValidatePlan must
// have already succeeded; if it would fail, no world is stepped.
func (b *Batch) StepAndObserve(
	cmdsPerWorld [][]*core.Command,
	plan *observe.ObsPlan,
	bind observe.BindKey,
	output []float32,
	mask []uint8,
) ([]engine.StepResult, error) {
	if err := b.ValidatePlan(plan, bind, output, mask); err != nil {
		return nil, err
	}
	if len(cmdsPerWorld) != len(b.worlds) {
		return nil, core.NewError(core.KindInvalidSpec, "batched: commands slice length must equal world count")
	}

	results := make([]engine.StepResult, len(b.worlds))
	var g errgroup.Group
	for i := range b.worlds {
		i := i
		g.Go(func() error {
			res, err := b.worlds[i].Step(cmdsPerWorld[i], nil)
			results[i] = res
			if err != nil {
				return &StepError{WorldIndex: i, Err: err}
			}
			return nil
		})
	}
	stepErr := g.Wait()

	snaps := make([]observe.Snapshot, len(b.worlds))
	for i, res := range results {
		snaps[i] = res.Snapshot
	}
	if err := observe.GatherBatch(plan, snaps, bind, output, mask); err != nil {
		return results, err
	}
	return results, stepErr
}
