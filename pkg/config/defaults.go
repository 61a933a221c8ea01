package config

import "time"

// Default values for configuration fields.
const (
	// Store defaults
	DefaultStoreBackend      = "memory"
	DefaultSQLitePath        = "data/aegis.db"
	DefaultSQLiteBusyTimeout = 5 * time.Second
	DefaultRedisAddr         = "127.0.0.1:6379"
	DefaultRedisDialTimeout  = 5 * time.Second
	DefaultRedisKeyPrefix    = "aegis:"

	// Admission defaults
	DefaultTierName    = "free"
	DefaultFailureMode = "open"

	// Cache defaults
	DefaultCacheTTL = 5 * time.Minute

	// Jobs defaults
	DefaultJobWorkers         = 4
	DefaultJobPollInterval    = 250 * time.Millisecond
	DefaultJobLeaseDuration   = time.Minute
	DefaultJobExecTimeout     = 30 * time.Second
	DefaultJobMaxAttempts     = 3
	DefaultJobBackoffBase     = time.Second
	DefaultJobBackoffMax      = 5 * time.Minute
	DefaultJobReclaimSchedule = "@every 30s"
	DefaultJobRetention       = 24 * time.Hour

	// Telemetry defaults
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultMetricsEnabled   = true
	DefaultMetricsNamespace = "aegis"

	// Ops defaults
	DefaultOpsListenAddress   = "127.0.0.1:9090"
	DefaultOpsReadTimeout     = 10 * time.Second
	DefaultOpsWriteTimeout    = 10 * time.Second
	DefaultOpsShutdownTimeout = 15 * time.Second
)

// ApplyDefaults fills zero-valued fields with defaults.
func ApplyDefaults(cfg *Config) {
	// Store
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = DefaultStoreBackend
	}
	if cfg.Store.SQLite.Path == "" {
		cfg.Store.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Store.SQLite.BusyTimeout == 0 {
		cfg.Store.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Store.Redis.Addr == "" {
		cfg.Store.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Store.Redis.DialTimeout == 0 {
		cfg.Store.Redis.DialTimeout = DefaultRedisDialTimeout
	}
	if cfg.Store.Redis.KeyPrefix == "" {
		cfg.Store.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	// Admission
	if cfg.Admission.DefaultTier == "" {
		cfg.Admission.DefaultTier = DefaultTierName
	}
	if cfg.Admission.FailureMode == "" {
		cfg.Admission.FailureMode = DefaultFailureMode
	}

	// Cache
	if cfg.Cache.DefaultTTL == 0 {
		cfg.Cache.DefaultTTL = DefaultCacheTTL
	}

	// Jobs
	if cfg.Jobs.Workers == 0 {
		cfg.Jobs.Workers = DefaultJobWorkers
	}
	if cfg.Jobs.PollInterval == 0 {
		cfg.Jobs.PollInterval = DefaultJobPollInterval
	}
	if cfg.Jobs.LeaseDuration == 0 {
		cfg.Jobs.LeaseDuration = DefaultJobLeaseDuration
	}
	if cfg.Jobs.ExecTimeout == 0 {
		cfg.Jobs.ExecTimeout = DefaultJobExecTimeout
	}
	if cfg.Jobs.DefaultMaxAttempts == 0 {
		cfg.Jobs.DefaultMaxAttempts = DefaultJobMaxAttempts
	}
	if cfg.Jobs.BackoffBase == 0 {
		cfg.Jobs.BackoffBase = DefaultJobBackoffBase
	}
	if cfg.Jobs.BackoffMax == 0 {
		cfg.Jobs.BackoffMax = DefaultJobBackoffMax
	}
	if cfg.Jobs.ReclaimSchedule == "" {
		cfg.Jobs.ReclaimSchedule = DefaultJobReclaimSchedule
	}
	if cfg.Jobs.Retention == 0 {
		cfg.Jobs.Retention = DefaultJobRetention
	}

	// Telemetry
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}

	// Ops
	if cfg.Ops.ListenAddress == "" {
		cfg.Ops.ListenAddress = DefaultOpsListenAddress
	}
	if cfg.Ops.ReadTimeout == 0 {
		cfg.Ops.ReadTimeout = DefaultOpsReadTimeout
	}
	if cfg.Ops.WriteTimeout == 0 {
		cfg.Ops.WriteTimeout = DefaultOpsWriteTimeout
	}
	if cfg.Ops.ShutdownTimeout == 0 {
		cfg.Ops.ShutdownTimeout = DefaultOpsShutdownTimeout
	}
}
