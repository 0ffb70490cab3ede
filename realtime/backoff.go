// Package realtime runs the tick engine continuously on a dedicated
// publisher goroutine and serves observations from a pool of workers
// against concurrently-pinned snapshots (spec §4.7).
//
// Grounded on generalizing the teacher's per-shard atomic-counter and
// generation-rotation idiom (pkg/shard.go, internal/genring) into a full
// publisher/worker-pool/epoch-reclaimer runtime, with the teacher's
// cache-line-padding discipline (internal/clockpro's tightly packed entry
// struct) as the direct precedent for internal/epoch's padded
// WorkerState.
//
// © 2025 murk authors. MIT License.
package realtime

import "math"

// Backoff maintains spec §4.7's effective_max_skew: the adaptive
// stale-action tolerance that tightens under sustained rejection pressure
// and relaxes back toward its initial value once rejections stop.
type Backoff struct {
	initial   float64
	cap       float64
	factor    float64
	threshold float64

	decayInterval int
	effective     float64

	windowTicks      int
	windowRejections int
	windowTotal      int
}

// NewBackoff constructs a Backoff starting at initialMaxSkew.
func NewBackoff(initialMaxSkew, capSkew, backoffFactor, rejectionRateThreshold float64, decayInterval int) *Backoff {
	if decayInterval < 1 {
		decayInterval = 1
	}
	return &Backoff{
		initial:       initialMaxSkew,
		cap:           capSkew,
		factor:        backoffFactor,
		threshold:     rejectionRateThreshold,
		decayInterval: decayInterval,
		effective:     initialMaxSkew,
	}
}

// EffectiveMaxSkew returns the current tolerance value.
func (b *Backoff) EffectiveMaxSkew() float64 { return b.effective }

// RecordTick folds one tick's (rejected, total) command counts into the
// rolling window; every decay_interval ticks it evaluates the rejection
// rate and adjusts effective_max_skew (spec §4.7: "Each tick updates a
// windowed rejection rate over decay_interval ticks. When rate >
// rejection_rate_threshold, effective_max_skew ← min(cap,
// effective_max_skew × backoff_factor). After decay_interval ticks with
// no rejections, decrements toward initial_max_skew").
func (b *Backoff) RecordTick(rejected, total int) {
	b.windowRejections += rejected
	b.windowTotal += total
	b.windowTicks++

	if b.windowTicks < b.decayInterval {
		return
	}

	rate := 0.0
	if b.windowTotal > 0 {
		rate = float64(b.windowRejections) / float64(b.windowTotal)
	}

	if rate > b.threshold {
		b.effective = math.Min(b.cap, b.effective*b.factor)
	} else if b.windowRejections == 0 {
		b.effective = b.stepTowardInitial()
	}

	b.windowTicks = 0
	b.windowRejections = 0
	b.windowTotal = 0
}

// stepTowardInitial moves effective one factor-step back toward initial,
// never overshooting past it in either direction.
func (b *Backoff) stepTowardInitial() float64 {
	if b.effective <= b.initial {
		return b.initial
	}
	next := b.effective / b.factor
	if next < b.initial {
		return b.initial
	}
	return next
}

// Disabled returns a Backoff that always reports a fixed skew tolerance
// of either 0 or 1, matching lockstep mode's documented exemption (spec
// §4.7: "Lockstep mode disables backoff (fixed 0 or 1 skew)").
func Disabled(fixedSkew float64) *Backoff {
	return &Backoff{initial: fixedSkew, effective: fixedSkew, cap: fixedSkew, factor: 1, decayInterval: 1}
}
