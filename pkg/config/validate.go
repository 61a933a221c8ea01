package config

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
)

// ErrInvalid is the base error for configuration validation failures.
var ErrInvalid = errors.New("invalid configuration")

// Validate checks the configuration for internal consistency.
// It assumes defaults have already been applied.
func Validate(cfg *Config) error {
	switch cfg.Store.Backend {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("%w: store.backend must be one of memory, sqlite, redis; got %q",
			ErrInvalid, cfg.Store.Backend)
	}

	if cfg.Store.Backend == "sqlite" && cfg.Store.SQLite.Path == "" {
		return fmt.Errorf("%w: store.sqlite.path cannot be empty", ErrInvalid)
	}
	if cfg.Store.Backend == "redis" && cfg.Store.Redis.Addr == "" {
		return fmt.Errorf("%w: store.redis.addr cannot be empty", ErrInvalid)
	}

	switch cfg.Admission.FailureMode {
	case "open", "closed":
	default:
		return fmt.Errorf("%w: admission.failure_mode must be open or closed; got %q",
			ErrInvalid, cfg.Admission.FailureMode)
	}

	for name, tc := range cfg.Admission.Tiers {
		if tc.Default != nil {
			if err := validatePolicy(name, "default", *tc.Default); err != nil {
				return err
			}
		}
		for pattern, pc := range tc.Paths {
			if err := validatePolicy(name, pattern, pc); err != nil {
				return err
			}
		}
	}

	if cfg.Cache.DefaultTTL < 0 {
		return fmt.Errorf("%w: cache.default_ttl cannot be negative", ErrInvalid)
	}

	if cfg.Jobs.Workers < 1 {
		return fmt.Errorf("%w: jobs.workers must be at least 1", ErrInvalid)
	}
	if cfg.Jobs.DefaultMaxAttempts < 1 {
		return fmt.Errorf("%w: jobs.default_max_attempts must be at least 1", ErrInvalid)
	}
	if cfg.Jobs.LeaseDuration <= 0 {
		return fmt.Errorf("%w: jobs.lease_duration must be positive", ErrInvalid)
	}
	if cfg.Jobs.BackoffMax < cfg.Jobs.BackoffBase {
		return fmt.Errorf("%w: jobs.backoff_max cannot be below jobs.backoff_base", ErrInvalid)
	}
	if cfg.Jobs.ReclaimSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Jobs.ReclaimSchedule); err != nil {
			return fmt.Errorf("%w: jobs.reclaim_schedule %q: %v",
				ErrInvalid, cfg.Jobs.ReclaimSchedule, err)
		}
	}

	switch cfg.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: telemetry.logging.level must be one of debug, info, warn, error; got %q",
			ErrInvalid, cfg.Telemetry.Logging.Level)
	}
	switch cfg.Telemetry.Logging.Format {
	case "json", "text", "console":
	default:
		return fmt.Errorf("%w: telemetry.logging.format must be one of json, text, console; got %q",
			ErrInvalid, cfg.Telemetry.Logging.Format)
	}

	return nil
}

func validatePolicy(tierName, where string, p PolicyConfig) error {
	if p.Limit < 1 {
		return fmt.Errorf("%w: tier %q policy %q: limit must be at least 1",
			ErrInvalid, tierName, where)
	}
	if p.Window <= 0 {
		return fmt.Errorf("%w: tier %q policy %q: window must be positive",
			ErrInvalid, tierName, where)
	}
	return nil
}
