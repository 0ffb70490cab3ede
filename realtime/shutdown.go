package realtime

import (
	"sync/atomic"
	"time"

	"github.com/tachyon-beep/murk/internal/epoch"
)

// Phase is one state of the four-state shutdown machine of spec §4.7.
type Phase int32

const (
	Running Phase = iota
	Draining
	Quiescing
	Dropped
)

func (p Phase) String() string {
	switch p {
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Quiescing:
		return "quiescing"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// phaseState is the atomic phase holder; a distinct type from Phase keeps
// Runtime's field declarations self-documenting.
type phaseState struct {
	v atomic.Int32
}

func (s *phaseState) load() Phase     { return Phase(s.v.Load()) }
func (s *phaseState) store(p Phase)   { s.v.Store(int32(p)) }

// ShutdownResult reports per-phase timings and any threads that exceeded
// their timeout and had to be recorded as leaked rather than silently
// dropped (spec §4.7, §5: "A timed-out thread is recorded, not silently
// leaked").
type ShutdownResult struct {
	PhaseDurations  map[Phase]time.Duration
	LeakedPublisher bool
}

// shutdownParams bundles the phase timeouts derived from tick_period and
// max_epoch_hold (spec §4.7: "Draining ... timeout ≈2× tick period",
// "Quiescing ... up to 2× max_epoch_hold").
type shutdownParams struct {
	drainTimeout    time.Duration
	quiesceTimeout  time.Duration
	joinTimeout     time.Duration
}

func newShutdownParams(tickPeriod, maxEpochHold time.Duration) shutdownParams {
	return shutdownParams{
		drainTimeout:   2 * tickPeriod,
		quiesceTimeout: 2 * maxEpochHold,
		joinTimeout:    100 * time.Millisecond,
	}
}

// shutdown drives the four-state machine to completion. tickIdle receives
// a signal from the publisher each time it finishes a tick;
// publisherExited is closed once the publisher goroutine has returned.
func (r *Runtime) shutdown() ShutdownResult {
	params := newShutdownParams(r.cfg.TickPeriod, r.cfg.MaxEpochHold)
	result := ShutdownResult{PhaseDurations: make(map[Phase]time.Duration)}

	// Running -> Draining: ingress starts rejecting, publisher finishes
	// its current tick if mid-flight.
	t0 := time.Now()
	r.phase.store(Draining)
	select {
	case <-r.tickIdle:
	case <-time.After(params.drainTimeout):
	}
	result.PhaseDurations[Draining] = time.Since(t0)

	// Draining -> Quiescing: request cancellation on every worker; after
	// cancel_grace, force-unpin stragglers so the reclaimer stops waiting
	// on them.
	t1 := time.Now()
	r.phase.store(Quiescing)
	for _, w := range r.workers {
		w.RequestCancel()
	}
	deadline := time.Now().Add(params.quiesceTimeout)
	grace := time.Now().Add(r.cfg.CancelGrace)
	for time.Now().Before(deadline) {
		if allUnpinned(r.workers) {
			break
		}
		if time.Now().After(grace) {
			forceUnpinStragglers(r.workers)
		}
		time.Sleep(time.Millisecond)
	}
	result.PhaseDurations[Quiescing] = time.Since(t1)

	// Quiescing -> Dropped: join the publisher goroutine with a timeout;
	// if it is still running, record it as leaked rather than silently
	// dropping it (spec §5). Observation workers in this design have no
	// dedicated background goroutine of their own — they pin/read/unpin
	// synchronously on the caller's goroutine — so only the publisher is
	// joined here.
	t2 := time.Now()
	select {
	case <-r.publisherExited:
	case <-time.After(params.joinTimeout):
		result.LeakedPublisher = true
	}
	r.phase.store(Dropped)
	result.PhaseDurations[Dropped] = time.Since(t2)

	return result
}

func allUnpinned(workers []*epoch.WorkerState) bool {
	for _, w := range workers {
		if _, pinned := w.Pinned(); pinned {
			return false
		}
	}
	return true
}

func forceUnpinStragglers(workers []*epoch.WorkerState) {
	for _, w := range workers {
		if _, pinned := w.Pinned(); pinned {
			w.ForceUnpin()
		}
	}
}
