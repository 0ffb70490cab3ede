// Package lockstep provides the synchronous, deterministic stepping
// runtime of spec §4.6: a thin wrapper around engine.World for training
// and testing callers that serialize their own access and need no
// concurrent observation.
//
// © 2025 murk authors. MIT License.
package lockstep

import (
	"time"

	"github.com/tachyon-beep/murk/core"
	"github.com/tachyon-beep/murk/engine"
	"github.com/tachyon-beep/murk/internal/arena"
)

// Metrics accompanies a StepResult with timing the caller can log or
// export without the runtime needing its own metrics backend (spec
// §4.6: StepResult{snapshot, receipts, metrics}).
type Metrics struct {
	Duration   time.Duration
	RolledBack bool
}

// StepResult is lockstep's public result type, pairing engine.World's
// result with timing metrics.
type StepResult struct {
	Snapshot arena.Snapshot
	Receipts []core.Receipt
	Metrics  Metrics
}

// Runtime owns a World exclusively; StepSync blocks the calling goroutine
// until the tick completes. Concurrent calls to StepSync on the same
// Runtime are not safe — spec §4.6 explicitly assigns the caller the
// responsibility of serializing access ("step_sync owns &mut World
// exclusively; concurrent observation is not needed, caller serialises").
type Runtime struct {
	world *engine.World
	queue *engine.Queue
}

// New wraps world in a lockstep Runtime.
func New(world *engine.World) *Runtime {
	return &Runtime{world: world, queue: engine.NewQueue(0)}
}

// StepSync assigns arrival sequence numbers to cmds, executes exactly one
// tick, and blocks until it completes (spec §4.6).
func (r *Runtime) StepSync(cmds []*core.Command) (StepResult, error) {
	start := time.Now()
	for _, c := range cmds {
		r.queue.Accept(c)
	}
	res, err := r.world.Step(cmds, nil)
	return StepResult{
		Snapshot: res.Snapshot,
		Receipts: res.Receipts,
		Metrics: Metrics{
			Duration:   time.Since(start),
			RolledBack: res.RolledBack,
		},
	}, err
}

// StepSyncAt is StepSync with an explicit pinned apply_tick_id, for
// deterministic replay callers that must reproduce a recorded tick
// sequence exactly (spec §4.5: "lockstep may pin to an explicit value").
func (r *Runtime) StepSyncAt(cmds []*core.Command, tickId core.TickId) (StepResult, error) {
	start := time.Now()
	for _, c := range cmds {
		r.queue.Accept(c)
	}
	res, err := r.world.Step(cmds, &tickId)
	return StepResult{
		Snapshot: res.Snapshot,
		Receipts: res.Receipts,
		Metrics: Metrics{
			Duration:   time.Since(start),
			RolledBack: res.RolledBack,
		},
	}, err
}
