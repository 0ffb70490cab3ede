package realtime

import (
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tachyon-beep/murk/core"
	"github.com/tachyon-beep/murk/engine"
	"github.com/tachyon-beep/murk/internal/arena"
	"github.com/tachyon-beep/murk/internal/epoch"
	"github.com/tachyon-beep/murk/metrics"
)

// Config bundles every realtime-specific knob not already owned by the
// engine.World it wraps (spec §4.7, §6).
type Config struct {
	TickPeriod   time.Duration
	RingCapacity int // default 8, clamp [2,64]
	WorkerCount  int // default num_cpus/2, clamp [2,16]

	MaxEpochHold time.Duration // default 100ms
	CancelGrace  time.Duration // default 10ms

	InitialMaxSkew         float64
	MaxSkewCap             float64
	BackoffFactor          float64
	RejectionRateThreshold float64 // default 0.20
	DecayInterval          int     // ticks

	IngressCapacity int

	// Metrics is the optional instrumentation sink; nil uses metrics.NewNoop().
	Metrics metrics.Sink
}

// WithDefaults fills zero-valued fields with spec §6's documented
// defaults, clamped to their documented ranges.
func (c Config) WithDefaults() Config {
	if c.TickPeriod <= 0 {
		c.TickPeriod = 20 * time.Millisecond
	}
	if c.RingCapacity == 0 {
		c.RingCapacity = 8
	}
	c.RingCapacity = clampInt(c.RingCapacity, 2, 64)
	if c.WorkerCount == 0 {
		c.WorkerCount = runtime.NumCPU() / 2
	}
	c.WorkerCount = clampInt(c.WorkerCount, 2, 16)
	if c.MaxEpochHold <= 0 {
		c.MaxEpochHold = 100 * time.Millisecond
	}
	if c.CancelGrace <= 0 {
		c.CancelGrace = 10 * time.Millisecond
	}
	if c.RejectionRateThreshold == 0 {
		c.RejectionRateThreshold = 0.20
	}
	if c.DecayInterval == 0 {
		c.DecayInterval = 60
	}
	if c.BackoffFactor == 0 {
		c.BackoffFactor = 1.5
	}
	if c.MaxSkewCap == 0 {
		c.MaxSkewCap = 10
	}
	if c.IngressCapacity == 0 {
		c.IngressCapacity = 1024
	}
	return c
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Runtime is the realtime asynchronous engine of spec §4.7: one publisher
// goroutine driving the tick engine at a fixed rate, plus a pool of
// observation workers reading concurrently-pinned snapshots off a bounded
// ring.
type Runtime struct {
	world *engine.World
	cfg   Config
	log   *zap.Logger

	queue   *engine.Queue
	ring    *epoch.Ring
	epochs  epoch.Counter
	backoff *Backoff

	workers  []*epoch.WorkerState
	pinStart []atomic.Int64 // UnixNano when each worker last pinned

	phase phaseState

	metrics      metrics.Sink
	ticksPushed  int

	stopCh          chan struct{}
	tickIdle        chan struct{}
	publisherExited chan struct{}
}

// New constructs a Runtime around world. Call Start to launch the
// publisher goroutine.
func New(world *engine.World, cfg Config, log *zap.Logger) *Runtime {
	cfg = cfg.WithDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	sink := cfg.Metrics
	if sink == nil {
		sink = metrics.NewNoop()
	}
	workers := make([]*epoch.WorkerState, cfg.WorkerCount)
	for i := range workers {
		workers[i] = epoch.NewWorkerState(i)
	}
	return &Runtime{
		world:           world,
		cfg:             cfg,
		log:             log,
		queue:           engine.NewQueue(cfg.IngressCapacity),
		ring:            epoch.NewRing(cfg.RingCapacity),
		backoff:         NewBackoff(cfg.InitialMaxSkew, cfg.MaxSkewCap, cfg.BackoffFactor, cfg.RejectionRateThreshold, cfg.DecayInterval),
		workers:         workers,
		pinStart:        make([]atomic.Int64, cfg.WorkerCount),
		metrics:         sink,
		stopCh:          make(chan struct{}),
		tickIdle:        make(chan struct{}, 1),
		publisherExited: make(chan struct{}),
	}
}

// Start launches the publisher goroutine. Workers in this design are
// passive: they pin/read/unpin synchronously from whatever goroutine the
// caller uses to request an observation (PinLatest/Unpin below), rather
// than running their own dedicated loops, since Murk workers do no
// independent background work of their own — only the publisher does.
func (r *Runtime) Start() {
	go r.publisherLoop()
}

// Submit enqueues cmd on the bounded ingress channel (spec §4.7).
func (r *Runtime) Submit(cmd *core.Command) error {
	if r.phase.load() != Running {
		return core.NewError(core.KindShuttingDown, "runtime is shutting down")
	}
	return r.queue.Submit(cmd)
}

// Shutdown drives the four-state shutdown machine to completion (spec
// §4.7) and returns its phase timings / leak report.
func (r *Runtime) Shutdown() ShutdownResult {
	close(r.stopCh)
	return r.shutdown()
}

func (r *Runtime) publisherLoop() {
	defer close(r.publisherExited)
	ticker := time.NewTicker(r.cfg.TickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.runOneTick()
			select {
			case r.tickIdle <- struct{}{}:
			default:
			}
		}
	}
}

func (r *Runtime) runOneTick() {
	if r.world.Disabled() {
		return
	}
	start := time.Now()
	cmds := r.queue.Drain(r.cfg.IngressCapacity)
	res, err := r.world.Step(cmds, nil)
	r.metrics.ObserveTickDuration(time.Since(start))
	if err != nil {
		r.log.Warn("tick failed", zap.Error(err))
	}

	rejected := 0
	for _, rec := range res.Receipts {
		if !rec.Accepted {
			rejected++
		}
	}
	r.backoff.RecordTick(rejected, len(res.Receipts))
	r.metrics.SetEffectiveMaxSkew(r.backoff.EffectiveMaxSkew())

	if !res.RolledBack {
		ep := r.epochs.Advance()
		r.ring.Push(epoch.Entry{
			TickId:     r.world.TickId(),
			Generation: res.Snapshot.Generation(),
			Epoch:      ep,
			Snapshot:   res.Snapshot,
		})
		r.metrics.IncTickSuccess()
		if r.ticksPushed < r.cfg.RingCapacity {
			r.ticksPushed++
		}
		r.metrics.SetRingOccupancy(r.ticksPushed)
	} else {
		r.metrics.IncRollback()
	}

	r.detectStalls()
}

// detectStalls implements spec §4.7's stall-detection/teardown sequence:
// a worker pinned longer than max_epoch_hold gets its cancel flag set;
// if it is still pinned after cancel_grace, it moves into the
// force_unpinned set the reclaimer consults for min_pinned.
func (r *Runtime) detectStalls() {
	now := time.Now().UnixNano()
	for i, w := range r.workers {
		_, pinned := w.Pinned()
		if !pinned {
			continue
		}
		since := time.Duration(now - r.pinStart[i].Load())
		if since > r.cfg.MaxEpochHold {
			w.RequestCancel()
		}
		if since > r.cfg.MaxEpochHold+r.cfg.CancelGrace {
			if !w.ForceUnpinned() {
				r.metrics.IncForceUnpin()
			}
			w.ForceUnpin()
		}
	}
}

// PinLatest pins worker idx to the latest published snapshot and returns
// it, or ok=false if nothing has been published yet.
func (r *Runtime) PinLatest(idx int) (arena.Snapshot, epoch.Entry, bool) {
	entry, ok := r.ring.Latest()
	if !ok {
		return arena.Snapshot{}, epoch.Entry{}, false
	}
	w := r.workers[idx]
	w.ClearCancel()
	w.ClearForceUnpin()
	r.pinStart[idx].Store(time.Now().UnixNano())
	w.Pin(entry.Epoch)
	return entry.Snapshot, entry, true
}

// Unpin releases worker idx's pin.
func (r *Runtime) Unpin(idx int) {
	r.workers[idx].Unpin(time.Now().UnixNano())
}

// MinPinnedEpoch exposes the reclaimer's min_pinned computation for
// callers/tests that want to observe reclamation eligibility directly.
func (r *Runtime) MinPinnedEpoch() (uint64, bool) {
	return epoch.MinPinned(r.workers)
}
