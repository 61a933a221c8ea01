package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"helios-hq/aegis/pkg/config"
)

// AdmissionMetrics tracks rate-limiter decisions.
//
// Metrics:
//   - aegis_admission_decisions_total: decisions by tier and outcome
//   - aegis_admission_store_failures_total: store errors by applied mode
type AdmissionMetrics struct {
	decisionsTotal     *prometheus.CounterVec
	storeFailuresTotal *prometheus.CounterVec
}

// NewAdmissionMetrics creates and registers admission metrics.
func NewAdmissionMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *AdmissionMetrics {
	am := &AdmissionMetrics{
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "admission_decisions_total",
				Help:      "Total admission decisions by tier and outcome",
			},
			[]string{"tier", "outcome"},
		),

		storeFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "admission_store_failures_total",
				Help:      "Total store failures during admission by applied failure mode",
			},
			[]string{"mode"},
		),
	}

	registry.MustRegister(am.decisionsTotal, am.storeFailuresTotal)
	return am
}

// RecordDecision records an admission decision. Outcome is "allowed",
// "denied", or "unlimited" (no applicable policy).
func (am *AdmissionMetrics) RecordDecision(tier, outcome string) {
	if am == nil {
		return
	}
	am.decisionsTotal.WithLabelValues(tier, outcome).Inc()
}

// RecordStoreFailure records a store failure and the failure mode applied
// ("open" or "closed").
func (am *AdmissionMetrics) RecordStoreFailure(mode string) {
	if am == nil {
		return
	}
	am.storeFailuresTotal.WithLabelValues(mode).Inc()
}
