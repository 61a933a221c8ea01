package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"helios-hq/aegis/pkg/config"
	"helios-hq/aegis/pkg/store"
	"helios-hq/aegis/pkg/telemetry/metrics"
)

// Compute produces the value for a cache key on a miss. It may block for
// arbitrary external latency; the manager holds no lock while it runs.
type Compute func(ctx context.Context) ([]byte, error)

// Manager memoizes computation results in the shared store, keyed by a
// prefix and a resource identity.
//
// Two concurrent misses for the same key may both invoke the computation;
// the result is duplicate work, never inconsistent state. Enabling
// singleflight collapses concurrent misses within one process, which
// bounds the herd to one computation per process rather than one per
// caller. Cross-process duplication is still possible and accepted.
type Manager struct {
	store      store.Store
	defaultTTL time.Duration
	logger     *slog.Logger
	metrics    *metrics.CacheMetrics

	// group is nil when singleflight is disabled.
	group *singleflight.Group
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Default: slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithMetrics sets the cache metric group. Nil disables recording.
func WithMetrics(cm *metrics.CacheMetrics) Option {
	return func(m *Manager) { m.metrics = cm }
}

// NewManager creates a cache manager over the given store.
func NewManager(st store.Store, cfg *config.CacheConfig, opts ...Option) *Manager {
	m := &Manager{
		store:      st,
		defaultTTL: cfg.DefaultTTL,
		logger:     slog.Default(),
	}
	if cfg.Singleflight {
		m.group = &singleflight.Group{}
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "cache")
	return m
}

// GetOrCompute returns the cached value for (prefix, resourceID) or runs
// compute, stores its result with ttl, and returns it. A ttl of zero uses
// the configured default.
//
// Store failures degrade to a pass-through: the computation runs, its
// result is returned uncached, and the degraded mode is logged and counted.
// Computation errors propagate unchanged and are never cached.
func (m *Manager) GetOrCompute(ctx context.Context, prefix, resourceID string, ttl time.Duration, compute Compute) ([]byte, error) {
	return m.getOrCompute(ctx, prefix, Key(prefix, resourceID), ttl, compute)
}

// GetOrComputeKeyed is GetOrCompute with extra key discriminators (query
// parameters, pagination, representation format) so distinct logical
// results sharing a resource id do not cross-contaminate.
func (m *Manager) GetOrComputeKeyed(ctx context.Context, prefix, resourceID string, extras []string, ttl time.Duration, compute Compute) ([]byte, error) {
	return m.getOrCompute(ctx, prefix, Key(prefix, resourceID, extras...), ttl, compute)
}

func (m *Manager) getOrCompute(ctx context.Context, prefix, key string, ttl time.Duration, compute Compute) ([]byte, error) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	cached, err := m.store.Get(ctx, key)
	switch {
	case err == nil:
		m.metrics.RecordHit(prefix)
		return cached, nil

	case store.IsUnavailable(err):
		m.metrics.RecordDegraded()
		m.logger.Warn("store unavailable, bypassing cache",
			"key", key,
			"error", err,
		)
		return compute(ctx)

	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("cache: get %q: %w", key, err)
	}

	m.metrics.RecordMiss(prefix)

	if m.group != nil {
		value, err, _ := m.group.Do(key, func() (any, error) {
			return m.computeAndStore(ctx, key, ttl, compute)
		})
		if err != nil {
			return nil, err
		}
		return value.([]byte), nil
	}

	return m.computeAndStore(ctx, key, ttl, compute)
}

func (m *Manager) computeAndStore(ctx context.Context, key string, ttl time.Duration, compute Compute) ([]byte, error) {
	value, err := compute(ctx)
	if err != nil {
		// Never cache failures.
		return nil, err
	}

	if err := m.store.Set(ctx, key, value, ttl); err != nil {
		if store.IsUnavailable(err) {
			m.metrics.RecordDegraded()
			m.logger.Warn("store unavailable, result not cached",
				"key", key,
				"error", err,
			)
			return value, nil
		}
		return nil, fmt.Errorf("cache: set %q: %w", key, err)
	}
	return value, nil
}

// Invalidate deletes the cached value for (prefix, resourceID). Every
// mutation path that changes the underlying resource must call it, or
// reads stay stale until the TTL runs out; the cache cannot enforce this
// from its side of the contract.
func (m *Manager) Invalidate(ctx context.Context, prefix, resourceID string, extras ...string) error {
	key := Key(prefix, resourceID, extras...)
	if err := m.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("cache: invalidate %q: %w", key, err)
	}
	m.metrics.RecordInvalidation(prefix)
	return nil
}

// Key builds the store key for a cached entry. Extra discriminators are
// fingerprinted so arbitrary parameter strings cannot collide with the
// prefix/id structure.
func Key(prefix, resourceID string, extras ...string) string {
	if len(extras) == 0 {
		return fmt.Sprintf("cache:%s:%s", prefix, resourceID)
	}
	sum := sha256.Sum256([]byte(strings.Join(extras, "\x1f")))
	return fmt.Sprintf("cache:%s:%s:%s", prefix, resourceID, hex.EncodeToString(sum[:8]))
}
