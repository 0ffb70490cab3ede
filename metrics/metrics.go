// Package metrics provides realtime.Runtime's optional Prometheus
// instrumentation: a Sink interface with a no-op default so the hot tick
// path never pays for metric updates unless a caller opts in.
//
// Adapted from the teacher's pkg/metrics.go: the same
// metricsSink-interface-with-noop-and-prometheus-implementations idiom,
// generalized from per-shard cache hit/miss/eviction/arena-byte counters
// to per-world tick-duration/rollback/backoff/ring-occupancy gauges —
// the publisher loop is this spec's hot path the way shard.Put/Get was
// the teacher's.
//
// © 2025 murk authors. MIT License.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Sink is the instrumentation surface realtime.Runtime writes to. Callers
// who do not want metrics use NewNoop(), which is the zero cost default.
type Sink interface {
	ObserveTickDuration(d time.Duration)
	IncTickSuccess()
	IncRollback()
	SetEffectiveMaxSkew(v float64)
	SetRingOccupancy(n int)
	IncForceUnpin()
}

type noopSink struct{}

func (noopSink) ObserveTickDuration(time.Duration) {}
func (noopSink) IncTickSuccess()                   {}
func (noopSink) IncRollback()                       {}
func (noopSink) SetEffectiveMaxSkew(float64)        {}
func (noopSink) SetRingOccupancy(int)               {}
func (noopSink) IncForceUnpin()                     {}

// NewNoop returns the zero-cost Sink.
func NewNoop() Sink { return noopSink{} }

// promSink is the Prometheus-backed Sink. It carries no shard label —
// unlike the teacher's per-shard metrics, a Murk runtime is a single
// world, not an N-way shard map, so every metric is process-global.
type promSink struct {
	tickDuration     prometheus.Histogram
	ticksTotal       prometheus.Counter
	rollbacksTotal   prometheus.Counter
	forceUnpinsTotal prometheus.Counter
	effectiveMaxSkew prometheus.Gauge
	ringOccupancy    prometheus.Gauge
}

// NewPrometheus builds a Sink registered against reg. reg must not be nil.
func NewPrometheus(reg *prometheus.Registry) Sink {
	ps := &promSink{
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "murk",
			Name:      "tick_duration_seconds",
			Help:      "Wall-clock duration of one engine tick.",
			Buckets:   prometheus.DefBuckets,
		}),
		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "murk",
			Name:      "ticks_total",
			Help:      "Number of ticks that published successfully.",
		}),
		rollbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "murk",
			Name:      "tick_rollbacks_total",
			Help:      "Number of ticks discarded by propagator failure.",
		}),
		forceUnpinsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "murk",
			Name:      "force_unpins_total",
			Help:      "Number of observation workers forcibly unpinned after cancel_grace.",
		}),
		effectiveMaxSkew: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "murk",
			Name:      "effective_max_skew",
			Help:      "Current adaptive stale-command skew tolerance.",
		}),
		ringOccupancy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "murk",
			Name:      "ring_occupancy",
			Help:      "Number of live snapshot generations currently held in the epoch ring.",
		}),
	}
	reg.MustRegister(ps.tickDuration, ps.ticksTotal, ps.rollbacksTotal,
		ps.forceUnpinsTotal, ps.effectiveMaxSkew, ps.ringOccupancy)
	return ps
}

func (p *promSink) ObserveTickDuration(d time.Duration) { p.tickDuration.Observe(d.Seconds()) }
func (p *promSink) IncTickSuccess()                     { p.ticksTotal.Inc() }
func (p *promSink) IncRollback()                        { p.rollbacksTotal.Inc() }
func (p *promSink) SetEffectiveMaxSkew(v float64)       { p.effectiveMaxSkew.Set(v) }
func (p *promSink) SetRingOccupancy(n int)              { p.ringOccupancy.Set(float64(n)) }
func (p *promSink) IncForceUnpin()                      { p.forceUnpinsTotal.Inc() }
