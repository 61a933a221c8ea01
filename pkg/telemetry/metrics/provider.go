package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"helios-hq/aegis/pkg/config"
)

// Provider owns the Prometheus registry and the metric groups for the
// admission layer. A nil *Provider (metrics disabled) is valid: all
// recording methods on the metric groups accept nil receivers and do
// nothing.
type Provider struct {
	registry *prometheus.Registry

	Admission *AdmissionMetrics
	Cache     *CacheMetrics
	Jobs      *JobMetrics
}

// NewProvider creates a registry with process and Go runtime collectors
// plus the admission-layer metric groups. Returns nil when metrics are
// disabled in the configuration.
func NewProvider(cfg *config.MetricsConfig) *Provider {
	if !cfg.Enabled {
		return nil
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Provider{
		registry:  registry,
		Admission: NewAdmissionMetrics(cfg, registry),
		Cache:     NewCacheMetrics(cfg, registry),
		Jobs:      NewJobMetrics(cfg, registry),
	}
}

// Registry returns the underlying registry for the /metrics handler.
func (p *Provider) Registry() *prometheus.Registry {
	if p == nil {
		return nil
	}
	return p.registry
}

// AdmissionGroup returns the admission metric group, nil-safe.
func (p *Provider) AdmissionGroup() *AdmissionMetrics {
	if p == nil {
		return nil
	}
	return p.Admission
}

// CacheGroup returns the cache metric group, nil-safe.
func (p *Provider) CacheGroup() *CacheMetrics {
	if p == nil {
		return nil
	}
	return p.Cache
}

// JobsGroup returns the job metric group, nil-safe.
func (p *Provider) JobsGroup() *JobMetrics {
	if p == nil {
		return nil
	}
	return p.Jobs
}
