package config

import "time"

// Config is the root configuration for the admission layer.
// It is loaded once at startup and passed explicitly to constructors;
// there is no package-level singleton.
type Config struct {
	// Store configures the shared key-value backend.
	Store StoreConfig `yaml:"store"`

	// Admission configures tiers, policies, and limiter behavior.
	Admission AdmissionConfig `yaml:"admission"`

	// Cache configures the response cache.
	Cache CacheConfig `yaml:"cache"`

	// Jobs configures the background job dispatcher.
	Jobs JobsConfig `yaml:"jobs"`

	// Telemetry configures logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Ops configures the operational HTTP endpoint (metrics, health).
	Ops OpsConfig `yaml:"ops"`
}

// StoreConfig selects and configures the key-value backend.
type StoreConfig struct {
	// Backend is one of "memory", "sqlite", "redis".
	Backend string `yaml:"backend"`

	// SQLite configures the SQLite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Redis configures the Redis backend.
	Redis RedisConfig `yaml:"redis"`
}

// SQLiteConfig configures the SQLite store backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string `yaml:"path"`

	// BusyTimeout is how long to wait for locks before failing.
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RedisConfig configures the Redis store backend.
type RedisConfig struct {
	// Addr is the host:port of the Redis server.
	Addr string `yaml:"addr"`

	// Password authenticates the connection. Empty disables auth.
	Password string `yaml:"password"`

	// DB selects the Redis logical database.
	DB int `yaml:"db"`

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration `yaml:"dial_timeout"`

	// KeyPrefix namespaces all keys written by this deployment.
	KeyPrefix string `yaml:"key_prefix"`
}

// AdmissionConfig configures tier resolution and the rate limiter.
type AdmissionConfig struct {
	// DefaultTier applies to principals with no configured tier.
	DefaultTier string `yaml:"default_tier"`

	// FailureMode controls behavior when the store is unreachable:
	// "open" admits all traffic, "closed" rejects it. Default: "open",
	// so the admission layer is never an availability single point of
	// failure on its own.
	FailureMode string `yaml:"failure_mode"`

	// Tiers maps tier names to their policies.
	Tiers map[string]TierConfig `yaml:"tiers"`
}

// TierConfig holds the policies for one tier.
type TierConfig struct {
	// Default is the tier-wide policy used when no path pattern matches.
	// Nil means paths without a matching pattern are not limited.
	Default *PolicyConfig `yaml:"default"`

	// Paths maps glob-style path patterns to policies. The most specific
	// matching pattern wins.
	Paths map[string]PolicyConfig `yaml:"paths"`
}

// PolicyConfig is a single rate-limit policy.
type PolicyConfig struct {
	// Limit is the maximum number of requests per window.
	Limit int64 `yaml:"limit"`

	// Window is the fixed window duration.
	Window time.Duration `yaml:"window"`
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	// DefaultTTL applies when a cache call site passes no TTL.
	DefaultTTL time.Duration `yaml:"default_ttl"`

	// Singleflight collapses concurrent misses for the same key into one
	// computation within this process.
	Singleflight bool `yaml:"singleflight"`
}

// JobsConfig configures the background job dispatcher.
type JobsConfig struct {
	// Workers is the size of the worker pool.
	Workers int `yaml:"workers"`

	// PollInterval is how long an idle worker sleeps between queue polls.
	PollInterval time.Duration `yaml:"poll_interval"`

	// LeaseDuration is how long a claimed job may stay in running state
	// before the reclaimer returns it to the queue.
	LeaseDuration time.Duration `yaml:"lease_duration"`

	// ExecTimeout bounds a single handler execution. A handler exceeding
	// it counts as a failed attempt.
	ExecTimeout time.Duration `yaml:"exec_timeout"`

	// DefaultMaxAttempts applies when a job is enqueued without an
	// explicit attempt budget.
	DefaultMaxAttempts int `yaml:"default_max_attempts"`

	// BackoffBase is the delay before the first retry; it doubles on each
	// subsequent failure.
	BackoffBase time.Duration `yaml:"backoff_base"`

	// BackoffMax caps the retry delay.
	BackoffMax time.Duration `yaml:"backoff_max"`

	// ReclaimSchedule is the cron expression for the lease reclaimer
	// sweep. Empty disables reclamation.
	ReclaimSchedule string `yaml:"reclaim_schedule"`

	// Retention is how long terminal job records stay queryable.
	Retention time.Duration `yaml:"retention"`
}

// TelemetryConfig groups observability settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `yaml:"level"`

	// Format is the output format ("json", "text", "console").
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled toggles metric collection.
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric name prefix (default "aegis").
	Namespace string `yaml:"namespace"`

	// Subsystem is the secondary metric name prefix.
	Subsystem string `yaml:"subsystem"`
}

// OpsConfig configures the operational HTTP endpoint.
type OpsConfig struct {
	// ListenAddress is the host:port for /metrics and /healthz.
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout bounds request reads.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds response writes.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}
