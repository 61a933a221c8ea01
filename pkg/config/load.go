package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file, applies defaults, and
// validates the result. Environment variables are not consulted; use
// LoadWithEnvOverrides for that.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := newSeeded()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Variables follow the naming convention
// AEGIS_SECTION_FIELD (e.g. AEGIS_STORE_BACKEND) and always take precedence
// over file-based configuration.
func LoadWithEnvOverrides(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// newSeeded returns a Config with the fields whose zero value is a valid
// setting pre-seeded, so absence in the YAML keeps the default rather than
// the zero value.
func newSeeded() *Config {
	cfg := &Config{}
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	return cfg
}

// applyEnvOverrides applies AEGIS_* environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	setString := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if v, ok := os.LookupEnv(name); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if v, ok := os.LookupEnv(name); ok {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	setBool := func(name string, dst *bool) {
		if v, ok := os.LookupEnv(name); ok {
			*dst = strings.EqualFold(v, "true") || v == "1"
		}
	}

	setString("AEGIS_STORE_BACKEND", &cfg.Store.Backend)
	setString("AEGIS_STORE_SQLITE_PATH", &cfg.Store.SQLite.Path)
	setString("AEGIS_STORE_REDIS_ADDR", &cfg.Store.Redis.Addr)
	setString("AEGIS_STORE_REDIS_PASSWORD", &cfg.Store.Redis.Password)
	setInt("AEGIS_STORE_REDIS_DB", &cfg.Store.Redis.DB)

	setString("AEGIS_ADMISSION_DEFAULT_TIER", &cfg.Admission.DefaultTier)
	setString("AEGIS_ADMISSION_FAILURE_MODE", &cfg.Admission.FailureMode)

	setDuration("AEGIS_CACHE_DEFAULT_TTL", &cfg.Cache.DefaultTTL)
	setBool("AEGIS_CACHE_SINGLEFLIGHT", &cfg.Cache.Singleflight)

	setInt("AEGIS_JOBS_WORKERS", &cfg.Jobs.Workers)
	setDuration("AEGIS_JOBS_LEASE_DURATION", &cfg.Jobs.LeaseDuration)
	setDuration("AEGIS_JOBS_EXEC_TIMEOUT", &cfg.Jobs.ExecTimeout)
	setInt("AEGIS_JOBS_DEFAULT_MAX_ATTEMPTS", &cfg.Jobs.DefaultMaxAttempts)

	setString("AEGIS_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	setString("AEGIS_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	setBool("AEGIS_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)

	setString("AEGIS_OPS_LISTEN_ADDRESS", &cfg.Ops.ListenAddress)
}
