package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"helios-hq/aegis/pkg/config"
)

func testProvider(t *testing.T) *Provider {
	t.Helper()
	p := NewProvider(&config.MetricsConfig{Enabled: true, Namespace: "aegis"})
	if p == nil {
		t.Fatal("Expected a provider when metrics are enabled")
	}
	return p
}

func TestNewProvider_Disabled(t *testing.T) {
	p := NewProvider(&config.MetricsConfig{Enabled: false})
	if p != nil {
		t.Error("Expected nil provider when metrics are disabled")
	}
	// Nil provider accessors and recording must be safe.
	if p.Registry() != nil {
		t.Error("Expected nil registry from nil provider")
	}
	p.AdmissionGroup().RecordDecision("free", "allowed")
	p.CacheGroup().RecordHit("user")
	p.JobsGroup().RecordEnqueued("send_email")
}

func TestAdmissionMetrics(t *testing.T) {
	p := testProvider(t)

	p.Admission.RecordDecision("free", "allowed")
	p.Admission.RecordDecision("free", "allowed")
	p.Admission.RecordDecision("free", "denied")
	p.Admission.RecordStoreFailure("open")

	got := testutil.ToFloat64(p.Admission.decisionsTotal.WithLabelValues("free", "allowed"))
	if got != 2 {
		t.Errorf("Expected 2 allowed decisions, got %v", got)
	}
	got = testutil.ToFloat64(p.Admission.storeFailuresTotal.WithLabelValues("open"))
	if got != 1 {
		t.Errorf("Expected 1 store failure, got %v", got)
	}
}

func TestCacheMetrics(t *testing.T) {
	p := testProvider(t)

	p.Cache.RecordMiss("user")
	p.Cache.RecordHit("user")
	p.Cache.RecordHit("user")
	p.Cache.RecordInvalidation("user")
	p.Cache.RecordDegraded()

	if got := testutil.ToFloat64(p.Cache.hitsTotal.WithLabelValues("user")); got != 2 {
		t.Errorf("Expected 2 hits, got %v", got)
	}
	if got := testutil.ToFloat64(p.Cache.missesTotal.WithLabelValues("user")); got != 1 {
		t.Errorf("Expected 1 miss, got %v", got)
	}
	if got := testutil.ToFloat64(p.Cache.degradedTotal); got != 1 {
		t.Errorf("Expected 1 degraded operation, got %v", got)
	}
}

func TestJobMetrics(t *testing.T) {
	p := testProvider(t)

	p.Jobs.RecordEnqueued("send_email")
	p.Jobs.RecordRetry("send_email")
	p.Jobs.RecordCompleted("send_email", "succeeded")
	p.Jobs.RecordReclaimed(3)
	p.Jobs.ObserveDuration("send_email", 120*time.Millisecond)

	if got := testutil.ToFloat64(p.Jobs.enqueuedTotal.WithLabelValues("send_email")); got != 1 {
		t.Errorf("Expected 1 enqueued, got %v", got)
	}
	if got := testutil.ToFloat64(p.Jobs.reclaimedTotal); got != 3 {
		t.Errorf("Expected 3 reclaimed, got %v", got)
	}
}
