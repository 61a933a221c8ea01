package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"helios-hq/aegis/pkg/config"
)

// CacheMetrics tracks response-cache performance.
//
// Metrics:
//   - aegis_cache_hits_total: hits by key prefix
//   - aegis_cache_misses_total: misses by key prefix
//   - aegis_cache_invalidations_total: explicit invalidations by key prefix
//   - aegis_cache_degraded_total: store failures bypassing the cache
type CacheMetrics struct {
	hitsTotal          *prometheus.CounterVec
	missesTotal        *prometheus.CounterVec
	invalidationsTotal *prometheus.CounterVec
	degradedTotal      prometheus.Counter
}

// NewCacheMetrics creates and registers cache metrics.
func NewCacheMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CacheMetrics {
	cm := &CacheMetrics{
		hitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_hits_total",
				Help:      "Total number of cache hits",
			},
			[]string{"prefix"},
		),

		missesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_misses_total",
				Help:      "Total number of cache misses",
			},
			[]string{"prefix"},
		),

		invalidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_invalidations_total",
				Help:      "Total number of explicit cache invalidations",
			},
			[]string{"prefix"},
		),

		degradedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_degraded_total",
				Help:      "Total number of cache operations bypassed because the store was unavailable",
			},
		),
	}

	registry.MustRegister(cm.hitsTotal, cm.missesTotal, cm.invalidationsTotal, cm.degradedTotal)
	return cm
}

// RecordHit records a cache hit for a key prefix.
func (cm *CacheMetrics) RecordHit(prefix string) {
	if cm == nil {
		return
	}
	cm.hitsTotal.WithLabelValues(prefix).Inc()
}

// RecordMiss records a cache miss for a key prefix.
func (cm *CacheMetrics) RecordMiss(prefix string) {
	if cm == nil {
		return
	}
	cm.missesTotal.WithLabelValues(prefix).Inc()
}

// RecordInvalidation records an explicit invalidation for a key prefix.
func (cm *CacheMetrics) RecordInvalidation(prefix string) {
	if cm == nil {
		return
	}
	cm.invalidationsTotal.WithLabelValues(prefix).Inc()
}

// RecordDegraded records a cache operation that fell through to the
// computation because the store was unreachable.
func (cm *CacheMetrics) RecordDegraded() {
	if cm == nil {
		return
	}
	cm.degradedTotal.Inc()
}
