package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoad_Full(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: "sqlite"
  sqlite:
    path: "/tmp/aegis.db"
    busy_timeout: "2s"

admission:
  default_tier: "free"
  failure_mode: "closed"
  tiers:
    free:
      default:
        limit: 10
        window: "60s"
      paths:
        "/api/v1/export/*":
          limit: 2
          window: "300s"
    pro:
      default:
        limit: 100
        window: "60s"

cache:
  default_ttl: "30s"
  singleflight: true

jobs:
  workers: 8
  lease_duration: "2m"
  exec_timeout: "45s"
  default_max_attempts: 5

telemetry:
  logging:
    level: "debug"
    format: "console"
  metrics:
    enabled: true
    namespace: "aegis"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Store.Backend != "sqlite" {
		t.Errorf("Expected sqlite backend, got %q", cfg.Store.Backend)
	}
	if cfg.Store.SQLite.BusyTimeout != 2*time.Second {
		t.Errorf("Expected 2s busy timeout, got %v", cfg.Store.SQLite.BusyTimeout)
	}
	if cfg.Admission.FailureMode != "closed" {
		t.Errorf("Expected failure_mode closed, got %q", cfg.Admission.FailureMode)
	}

	free, ok := cfg.Admission.Tiers["free"]
	if !ok {
		t.Fatal("Expected free tier to be present")
	}
	if free.Default == nil || free.Default.Limit != 10 || free.Default.Window != time.Minute {
		t.Errorf("Unexpected free tier default policy: %+v", free.Default)
	}
	export := free.Paths["/api/v1/export/*"]
	if export.Limit != 2 || export.Window != 5*time.Minute {
		t.Errorf("Unexpected export policy: %+v", export)
	}

	if !cfg.Cache.Singleflight {
		t.Error("Expected singleflight enabled")
	}
	if cfg.Jobs.Workers != 8 {
		t.Errorf("Expected 8 workers, got %d", cfg.Jobs.Workers)
	}
	if cfg.Jobs.DefaultMaxAttempts != 5 {
		t.Errorf("Expected 5 max attempts, got %d", cfg.Jobs.DefaultMaxAttempts)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, `
admission:
  tiers:
    free:
      default:
        limit: 5
        window: "60s"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Store.Backend != DefaultStoreBackend {
		t.Errorf("Expected default backend, got %q", cfg.Store.Backend)
	}
	if cfg.Admission.DefaultTier != DefaultTierName {
		t.Errorf("Expected default tier, got %q", cfg.Admission.DefaultTier)
	}
	if cfg.Admission.FailureMode != DefaultFailureMode {
		t.Errorf("Expected fail-open default, got %q", cfg.Admission.FailureMode)
	}
	if cfg.Jobs.Workers != DefaultJobWorkers {
		t.Errorf("Expected default workers, got %d", cfg.Jobs.Workers)
	}
	if cfg.Jobs.Retention != DefaultJobRetention {
		t.Errorf("Expected default retention, got %v", cfg.Jobs.Retention)
	}
	if !cfg.Telemetry.Metrics.Enabled {
		t.Error("Expected metrics enabled by default")
	}
	if cfg.Telemetry.Logging.Level != DefaultLogLevel {
		t.Errorf("Expected default log level, got %q", cfg.Telemetry.Logging.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "store: [not: a: mapping")
	if _, err := Load(path); err == nil {
		t.Fatal("Expected error for malformed YAML")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: "memory"
`)

	t.Setenv("AEGIS_STORE_BACKEND", "redis")
	t.Setenv("AEGIS_STORE_REDIS_ADDR", "redis.internal:6379")
	t.Setenv("AEGIS_ADMISSION_FAILURE_MODE", "closed")
	t.Setenv("AEGIS_JOBS_WORKERS", "16")

	cfg, err := LoadWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadWithEnvOverrides failed: %v", err)
	}

	if cfg.Store.Backend != "redis" {
		t.Errorf("Expected env override to set backend redis, got %q", cfg.Store.Backend)
	}
	if cfg.Store.Redis.Addr != "redis.internal:6379" {
		t.Errorf("Expected env override to set redis addr, got %q", cfg.Store.Redis.Addr)
	}
	if cfg.Admission.FailureMode != "closed" {
		t.Errorf("Expected env override to set failure mode, got %q", cfg.Admission.FailureMode)
	}
	if cfg.Jobs.Workers != 16 {
		t.Errorf("Expected env override to set workers, got %d", cfg.Jobs.Workers)
	}
}

func TestLoadWithEnvOverrides_InvalidValueRejected(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: "memory"
`)

	t.Setenv("AEGIS_ADMISSION_FAILURE_MODE", "sideways")

	_, err := LoadWithEnvOverrides(path)
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("Expected ErrInvalid for bad failure mode, got %v", err)
	}
}
