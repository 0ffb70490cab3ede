package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNoopSinkDoesNotPanic(t *testing.T) {
	s := NewNoop()
	s.ObserveTickDuration(time.Millisecond)
	s.IncTickSuccess()
	s.IncRollback()
	s.SetEffectiveMaxSkew(2.5)
	s.SetRingOccupancy(4)
	s.IncForceUnpin()
}

func TestPrometheusSinkRegistersAndRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewPrometheus(reg)
	s.IncTickSuccess()
	s.IncTickSuccess()
	s.SetEffectiveMaxSkew(3.0)

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, f := range families {
		if f.GetName() == "murk_ticks_total" {
			found = true
			if got := f.Metric[0].GetCounter().GetValue(); got != 2 {
				t.Fatalf("murk_ticks_total = %v, want 2", got)
			}
		}
	}
	if !found {
		t.Fatal("expected murk_ticks_total to be registered and gathered")
	}
}

func TestNewPrometheusRegistersAllMetricsOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPrometheus(reg)
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(families) != 6 {
		t.Fatalf("expected 6 registered metric families, got %d", len(families))
	}
}
