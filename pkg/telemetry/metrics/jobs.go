package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"helios-hq/aegis/pkg/config"
)

// JobMetrics tracks the background job lifecycle.
//
// Metrics:
//   - aegis_jobs_enqueued_total: jobs enqueued by handler name
//   - aegis_jobs_completed_total: terminal outcomes by handler name and status
//   - aegis_jobs_retries_total: retry attempts scheduled by handler name
//   - aegis_jobs_reclaimed_total: jobs returned to the queue by the reclaimer
//   - aegis_jobs_duration_seconds: handler execution time by handler name
type JobMetrics struct {
	enqueuedTotal   *prometheus.CounterVec
	completedTotal  *prometheus.CounterVec
	retriesTotal    *prometheus.CounterVec
	reclaimedTotal  prometheus.Counter
	durationSeconds *prometheus.HistogramVec
}

// NewJobMetrics creates and registers job metrics.
func NewJobMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *JobMetrics {
	jm := &JobMetrics{
		enqueuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "jobs_enqueued_total",
				Help:      "Total jobs enqueued by handler name",
			},
			[]string{"handler"},
		),

		completedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "jobs_completed_total",
				Help:      "Total jobs reaching a terminal status by handler name",
			},
			[]string{"handler", "status"},
		),

		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "jobs_retries_total",
				Help:      "Total retry attempts scheduled by handler name",
			},
			[]string{"handler"},
		),

		reclaimedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "jobs_reclaimed_total",
				Help:      "Total jobs returned to the queue after a lease expired",
			},
		),

		durationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "jobs_duration_seconds",
				Help:      "Handler execution time by handler name",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"handler"},
		),
	}

	registry.MustRegister(
		jm.enqueuedTotal,
		jm.completedTotal,
		jm.retriesTotal,
		jm.reclaimedTotal,
		jm.durationSeconds,
	)
	return jm
}

// RecordEnqueued records a job submission.
func (jm *JobMetrics) RecordEnqueued(handler string) {
	if jm == nil {
		return
	}
	jm.enqueuedTotal.WithLabelValues(handler).Inc()
}

// RecordCompleted records a terminal outcome ("succeeded" or "abandoned").
func (jm *JobMetrics) RecordCompleted(handler, status string) {
	if jm == nil {
		return
	}
	jm.completedTotal.WithLabelValues(handler, status).Inc()
}

// RecordRetry records a scheduled retry.
func (jm *JobMetrics) RecordRetry(handler string) {
	if jm == nil {
		return
	}
	jm.retriesTotal.WithLabelValues(handler).Inc()
}

// RecordReclaimed records jobs returned to the queue by the reclaimer.
func (jm *JobMetrics) RecordReclaimed(n int) {
	if jm == nil || n == 0 {
		return
	}
	jm.reclaimedTotal.Add(float64(n))
}

// ObserveDuration records a handler execution time.
func (jm *JobMetrics) ObserveDuration(handler string, d time.Duration) {
	if jm == nil {
		return
	}
	jm.durationSeconds.WithLabelValues(handler).Observe(d.Seconds())
}
