// Package observability exposes Prometheus metrics and OpenTelemetry spans
// for processing passes and gateway sends.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds metric instruments for smsrelay.
type Metrics struct {
	PassesTotal   *prometheus.CounterVec
	OutcomesTotal *prometheus.CounterVec
	SendsTotal    *prometheus.CounterVec
	SendLatency   *prometheus.HistogramVec
	SaveConflicts prometheus.Counter
	StaleAttempts prometheus.Gauge
}

// NewMetrics creates smsrelay metric instruments and registers them with reg.
// Pass prometheus.DefaultRegisterer in a daemon, or a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PassesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smsrelay_passes_total",
			Help: "Processing passes run, by trigger.",
		}, []string{"trigger"}),
		OutcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smsrelay_reallocation_outcomes_total",
			Help: "Reallocation engine outcomes, by kind.",
		}, []string{"outcome"}),
		SendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smsrelay_sends_total",
			Help: "Gateway sends, by channel and status.",
		}, []string{"channel", "status"}),
		SendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "smsrelay_send_latency_seconds",
			Help:    "Gateway send latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"channel"}),
		SaveConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smsrelay_save_conflicts_total",
			Help: "Optimistic concurrency conflicts while saving messages.",
		}),
		StaleAttempts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smsrelay_stale_attempts",
			Help: "Pending attempts found past their deadline by the last sweep.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.PassesTotal,
			m.OutcomesTotal,
			m.SendsTotal,
			m.SendLatency,
			m.SaveConflicts,
			m.StaleAttempts,
		)
	}
	return m
}

// RecordPass counts one processing pass.
func (m *Metrics) RecordPass(trigger string) {
	m.PassesTotal.WithLabelValues(trigger).Inc()
}

// RecordOutcome counts one reallocation outcome.
func (m *Metrics) RecordOutcome(outcome string) {
	m.OutcomesTotal.WithLabelValues(outcome).Inc()
}

// RecordSend records a gateway send with the given status and latency.
func (m *Metrics) RecordSend(channel, status string, latencySeconds float64) {
	m.SendsTotal.WithLabelValues(channel, status).Inc()
	m.SendLatency.WithLabelValues(channel).Observe(latencySeconds)
}
