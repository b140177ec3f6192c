package service

import (
	"github.com/prometheus/client_golang/prometheus"

	"posdoctor/internal/domain"
)

// Metrics counts reconciliation passes and what they found. Register it on
// the registry that backs /metrics; a nil *Metrics records nothing.
type Metrics struct {
	Passes     *prometheus.CounterVec
	Violations *prometheus.CounterVec
	Fixes      *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Passes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "posdoctor_passes_total",
				Help: "Reconciliation passes by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		Violations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "posdoctor_violations_total",
				Help: "Invariant violations found, by rule",
			},
			[]string{"operation", "rule"},
		),
		Fixes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "posdoctor_fixes_total",
				Help: "Corrections persisted by repair passes",
			},
			[]string{"kind"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "posdoctor_pass_duration_seconds",
				Help:    "Duration of reconciliation passes",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Passes, m.Violations, m.Fixes, m.Duration)
	}
	return m
}

func (m *Metrics) pass(operation string, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Passes.WithLabelValues(operation, outcome).Inc()
	m.Duration.WithLabelValues(operation).Observe(seconds)
}

func (m *Metrics) violations(operation string, violations []domain.Violation) {
	if m == nil {
		return
	}
	for _, v := range violations {
		m.Violations.WithLabelValues(operation, v.Rule).Inc()
	}
}

func (m *Metrics) repaired(result domain.RepairResult) {
	if m == nil {
		return
	}
	m.Fixes.WithLabelValues("shifts").Add(float64(result.FixedShifts))
	m.Fixes.WithLabelValues("invoices").Add(float64(result.FixedInvoices))
	m.Fixes.WithLabelValues("duplicates").Add(float64(result.RemovedDuplicates))
}
