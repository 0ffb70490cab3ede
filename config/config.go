// Package config provides the functional-options construction surface of
// spec §6: one builder that validates every knob eagerly and assembles
// either a lockstep.Runtime or a realtime.Runtime from it.
//
// Grounded directly on the teacher's pkg/config.go: a private config
// struct mutated only through Option funcs, defaults filled in up front,
// and a single applyOptions pass that validates every invariant once
// rather than scattering checks across constructors.
//
// © 2025 murk authors. MIT License.
package config

import (
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/tachyon-beep/murk/core"
	"github.com/tachyon-beep/murk/engine"
	"github.com/tachyon-beep/murk/internal/arena"
	"github.com/tachyon-beep/murk/lockstep"
	"github.com/tachyon-beep/murk/metrics"
	"github.com/tachyon-beep/murk/propagator"
	"github.com/tachyon-beep/murk/realtime"
	"github.com/tachyon-beep/murk/space"
)

// Option mutates a config during BuildWorld, BuildLockstep or BuildRealtime.
// Options never validate individually;
// applyOptions validates the assembled whole exactly once (teacher's
// pkg/config.go: "All fields are initialised with sensible defaults ...
// validation happens once").
type Option func(*config)

// config bundles every knob spec §6 names. Unexported: callers only
// influence it through Option, which keeps the surface forward-compatible
// as Murk grows new knobs.
type config struct {
	space       space.Space
	fields      []core.FieldDef
	propagators []propagator.Propagator
	dt          float64
	seed        uint64

	rollbackLimit int

	// realtime-only knobs; zero values mean "use realtime.Config.WithDefaults".
	tickRateHz             float64
	ringCapacity           int
	workerCount            int
	maxEpochHold           float64 // seconds; converted to time.Duration in Build
	cancelGrace            float64 // seconds
	ingressCapacity        int
	initialMaxSkew         float64
	maxSkewCap             float64
	backoffFactor          float64
	rejectionRateThreshold float64
	decayInterval          int

	logger     *zap.Logger
	metricsReg *prometheus.Registry
}

func defaultConfig() *config {
	return &config{
		dt:                     1.0,
		rollbackLimit:          engine.DefaultRollbackLimit,
		initialMaxSkew:         2,
		maxSkewCap:             10,
		backoffFactor:          1.5,
		rejectionRateThreshold: 0.20,
		decayInterval:          60,
		logger:                 zap.NewNop(),
	}
}

// WithSpace sets the world's spatial lattice. Required.
func WithSpace(sp space.Space) Option {
	return func(c *config) { c.space = sp }
}

// WithFields sets the world's field schema. Required, non-empty.
func WithFields(fields []core.FieldDef) Option {
	return func(c *config) { c.fields = fields }
}

// WithPropagators sets the tick pipeline. Required, non-empty.
func WithPropagators(props []propagator.Propagator) Option {
	return func(c *config) { c.propagators = props }
}

// WithDt sets the fixed per-tick timestep. Must be finite and > 0.
func WithDt(dt float64) Option {
	return func(c *config) { c.dt = dt }
}

// WithSeed sets the world's deterministic seed (carried for callers that
// thread it into their own randomised command generation; Murk's core
// itself performs no randomised behaviour).
func WithSeed(seed uint64) Option {
	return func(c *config) { c.seed = seed }
}

// WithRollbackLimit overrides spec §4.5's fail-stop threshold.
func WithRollbackLimit(limit int) Option {
	return func(c *config) { c.rollbackLimit = limit }
}

// WithTickRate sets the realtime publisher's fixed tick rate in Hz.
// Required for BuildRealtime, ignored by BuildLockstep.
func WithTickRate(hz float64) Option {
	return func(c *config) { c.tickRateHz = hz }
}

// WithRingCapacity overrides the realtime snapshot ring size (default 8;
// values below 2 are rejected, values above 64 are clamped to 64).
func WithRingCapacity(n int) Option {
	return func(c *config) { c.ringCapacity = n }
}

// WithWorkerCount overrides the realtime observation worker pool size
// (default num_cpus/2, clamp [2,16]).
func WithWorkerCount(n int) Option {
	return func(c *config) { c.workerCount = n }
}

// WithEpochTimeouts overrides max_epoch_hold and cancel_grace, both in
// seconds (defaults 0.1s and 0.01s respectively).
func WithEpochTimeouts(maxEpochHoldSeconds, cancelGraceSeconds float64) Option {
	return func(c *config) {
		c.maxEpochHold = maxEpochHoldSeconds
		c.cancelGrace = cancelGraceSeconds
	}
}

// WithIngressCapacity overrides the bounded ingress channel size.
func WithIngressCapacity(n int) Option {
	return func(c *config) { c.ingressCapacity = n }
}

// WithBackoff overrides spec §4.7's adaptive skew-tolerance parameters.
// factor must be > 1, threshold must lie in (0,1), and initial must not
// exceed cap.
func WithBackoff(initialMaxSkew, cap, factor, rejectionRateThreshold float64, decayInterval int) Option {
	return func(c *config) {
		c.initialMaxSkew = initialMaxSkew
		c.maxSkewCap = cap
		c.backoffFactor = factor
		c.rejectionRateThreshold = rejectionRateThreshold
		c.decayInterval = decayInterval
	}
}

// WithLogger plugs an external zap.Logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables Prometheus instrumentation for a realtime.Runtime
// built via BuildRealtime (spec §4.7's publisher/worker/backoff metrics).
// Ignored by BuildLockstep, which has no continuously-running loop to
// instrument. Passing nil disables metrics (default).
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *config) { c.metricsReg = reg }
}

// applyOptions mutates a fresh defaultConfig with opts, then validates
// every invariant spec §6 names in one place: "All configuration is
// validated at construction; invalid combinations ... are rejected up
// front."
func applyOptions(opts []Option) (*config, error) {
	c := defaultConfig()
	for _, opt := range opts {
		opt(c)
	}

	if c.space == nil {
		return nil, core.NewError(core.KindInvalidDimensions, "config: space is required")
	}
	if len(c.fields) == 0 {
		return nil, core.NewError(core.KindInvalidDimensions, "config: at least one field is required")
	}
	if len(c.propagators) == 0 {
		return nil, core.NewError(core.KindEmptyPipeline, "config: at least one propagator is required")
	}
	if math.IsNaN(c.dt) || math.IsInf(c.dt, 0) || c.dt <= 0 {
		return nil, core.NewError(core.KindDtOutOfRange, "config: dt must be finite and > 0")
	}
	if c.rollbackLimit <= 0 {
		return nil, core.NewError(core.KindInvalidDimensions, "config: rollback_limit must be > 0")
	}
	if c.initialMaxSkew > c.maxSkewCap {
		return nil, core.NewError(core.KindBackoffInvariant, "config: initial_max_skew must not exceed cap")
	}
	if c.backoffFactor <= 1 {
		return nil, core.NewError(core.KindBackoffInvariant, "config: backoff factor must be > 1")
	}
	if c.rejectionRateThreshold <= 0 || c.rejectionRateThreshold >= 1 {
		return nil, core.NewError(core.KindBackoffInvariant, "config: rejection_rate_threshold must lie in (0,1)")
	}
	if c.ringCapacity != 0 && c.ringCapacity < 2 {
		return nil, core.NewError(core.KindRingTooSmall, "config: ring_capacity must be >= 2")
	}
	return c, nil
}

// BuildWorld assembles the arena, validated propagator pipeline, and
// engine.World shared by both lockstep and realtime construction.
func BuildWorld(opts ...Option) (*engine.World, error) {
	c, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	return buildWorld(c)
}

func buildWorld(c *config) (*engine.World, error) {
	a, err := arena.New(arena.Config{Fields: c.fields, CellCount: c.space.CellCount()})
	if err != nil {
		return nil, err
	}
	pipeline, err := propagator.New(c.propagators, c.dt, c.space)
	if err != nil {
		return nil, err
	}
	if err := pipeline.ValidateFields(len(c.fields)); err != nil {
		return nil, err
	}
	return engine.NewWorld(a, pipeline, c.space, c.rollbackLimit), nil
}

// BuildLockstep assembles a synchronous lockstep.Runtime (spec §4.6).
func BuildLockstep(opts ...Option) (*lockstep.Runtime, error) {
	world, err := BuildWorld(opts...)
	if err != nil {
		return nil, err
	}
	return lockstep.New(world), nil
}

// BuildRealtime assembles an asynchronous realtime.Runtime (spec §4.7).
// tick_rate_hz must have been set via WithTickRate.
func BuildRealtime(opts ...Option) (*realtime.Runtime, error) {
	c, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(c.tickRateHz) || math.IsInf(c.tickRateHz, 0) || c.tickRateHz <= 0 {
		return nil, core.NewError(core.KindDtOutOfRange, "config: tick_rate_hz must be finite and > 0 for realtime runtimes")
	}
	world, err := buildWorld(c)
	if err != nil {
		return nil, err
	}
	var sink metrics.Sink
	if c.metricsReg != nil {
		sink = metrics.NewPrometheus(c.metricsReg)
	}
	rtCfg := realtime.Config{
		TickPeriod:             secondsToDuration(1.0 / c.tickRateHz),
		RingCapacity:           c.ringCapacity,
		WorkerCount:            c.workerCount,
		MaxEpochHold:           secondsToDuration(c.maxEpochHold),
		CancelGrace:            secondsToDuration(c.cancelGrace),
		InitialMaxSkew:         c.initialMaxSkew,
		MaxSkewCap:             c.maxSkewCap,
		BackoffFactor:          c.backoffFactor,
		RejectionRateThreshold: c.rejectionRateThreshold,
		DecayInterval:          c.decayInterval,
		IngressCapacity:        c.ingressCapacity,
		Metrics:                sink,
	}
	return realtime.New(world, rtCfg, c.logger), nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
