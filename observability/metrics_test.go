package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	if m.PassesTotal == nil {
		t.Fatal("PassesTotal should not be nil")
	}
	if m.OutcomesTotal == nil {
		t.Fatal("OutcomesTotal should not be nil")
	}
	if m.SendsTotal == nil {
		t.Fatal("SendsTotal should not be nil")
	}
	if m.SendLatency == nil {
		t.Fatal("SendLatency should not be nil")
	}
	if m.SaveConflicts == nil {
		t.Fatal("SaveConflicts should not be nil")
	}
	if m.StaleAttempts == nil {
		t.Fatal("StaleAttempts should not be nil")
	}
}

func TestNewMetrics_NilRegisterer(t *testing.T) {
	m := NewMetrics(nil)
	m.RecordPass("timeout")
}

func TestRecordSend(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordSend("push", "ok", 0.5)
	m.RecordSend("push", "ok", 1.2)
	m.RecordSend("carrier", "error", 0.3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	found := false
	for _, f := range families {
		if f.GetName() == "smsrelay_sends_total" {
			found = true
			metrics := f.GetMetric()
			if len(metrics) != 2 { // push/ok + carrier/error
				t.Fatalf("expected 2 label combinations, got %d", len(metrics))
			}
		}
	}
	if !found {
		t.Fatal("smsrelay_sends_total metric not found")
	}
}

func TestRecordOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordOutcome("reallocated")
	m.RecordOutcome("reallocated")
	m.RecordOutcome("reallocated")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	for _, f := range families {
		if f.GetName() == "smsrelay_reallocation_outcomes_total" {
			metrics := f.GetMetric()
			if len(metrics) != 1 {
				t.Fatalf("expected 1 metric, got %d", len(metrics))
			}
			val := metrics[0].GetCounter().GetValue()
			if val != 3 {
				t.Fatalf("expected count 3, got %f", val)
			}
			return
		}
	}
	t.Fatal("smsrelay_reallocation_outcomes_total metric not found")
}

func TestGaugesAndCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.StaleAttempts.Set(42)
	m.SaveConflicts.Add(3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	want := map[string]float64{
		"smsrelay_stale_attempts":       42,
		"smsrelay_save_conflicts_total": 3,
	}

	for _, f := range families {
		expected, ok := want[f.GetName()]
		if !ok {
			continue
		}
		metric := f.GetMetric()[0]
		val := metric.GetGauge().GetValue()
		if metric.GetCounter() != nil {
			val = metric.GetCounter().GetValue()
		}
		if val != expected {
			t.Fatalf("%s: expected %f, got %f", f.GetName(), expected, val)
		}
		delete(want, f.GetName())
	}

	if len(want) > 0 {
		t.Fatalf("metrics not found: %v", want)
	}
}
