package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"helios-hq/aegis/pkg/config"
	"helios-hq/aegis/pkg/store"
	"helios-hq/aegis/pkg/telemetry/metrics"
	"helios-hq/aegis/pkg/tier"
)

// FailureMode controls limiter behavior when the store is unreachable.
type FailureMode string

const (
	// FailOpen admits all traffic during a store outage. This is the
	// default: the admission layer must not become an availability
	// single point of failure on its own.
	FailOpen FailureMode = "open"

	// FailClosed rejects all limited traffic during a store outage.
	FailClosed FailureMode = "closed"
)

// Decision is the outcome of an admission check.
type Decision struct {
	// Allowed indicates whether the request may proceed.
	Allowed bool

	// RetryAfter is how long to wait before retrying (set when denied).
	RetryAfter time.Duration

	// Limit is the applied policy limit (zero when no policy applied).
	Limit int64

	// Remaining is the number of requests left in the current window.
	Remaining int64

	// Tier is the resolved tier, for logging and response headers.
	Tier string
}

// Limiter admits or rejects requests under fixed time windows.
//
// Each (principal, path pattern) stream is counted in buckets of the
// policy's window length; the bucket key is derived from wall-clock time
// truncated to the window. All instances sharing one store therefore
// count against the same buckets, and correctness reduces to the store's
// atomic increment.
type Limiter struct {
	store    store.Store
	resolver atomic.Pointer[tier.Resolver]
	mode     FailureMode
	logger   *slog.Logger
	metrics  *metrics.AdmissionMetrics
	now      func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLogger sets the logger. Default: slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// WithMetrics sets the admission metric group. Nil disables recording.
func WithMetrics(m *metrics.AdmissionMetrics) Option {
	return func(l *Limiter) { l.metrics = m }
}

// WithClock overrides the wall clock. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter over the given store and resolver.
func New(st store.Store, resolver *tier.Resolver, cfg *config.AdmissionConfig, opts ...Option) *Limiter {
	l := &Limiter{
		store:  st,
		mode:   FailureMode(cfg.FailureMode),
		logger: slog.Default(),
		now:    time.Now,
	}
	l.resolver.Store(resolver)
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "ratelimit")
	return l
}

// SetResolver swaps in a new policy table, typically after a configuration
// reload. The swap is atomic; in-flight admissions finish against the
// table they started with.
func (l *Limiter) SetResolver(resolver *tier.Resolver) {
	l.resolver.Store(resolver)
}

// Admit decides whether a request from principal to path may proceed.
//
// The decision sequence is:
//  1. Resolve the principal's tier and the (tier, path) policy. No
//     applicable policy admits unconditionally.
//  2. Atomically increment the current window bucket with the window as
//     its TTL.
//  3. Compare the count against the limit; when over, deny with the time
//     remaining until the bucket rolls over.
//
// A store outage applies the configured failure mode instead of an error:
// the caller always gets a usable Decision. The error return is reserved
// for programming errors (e.g. a corrupted counter).
func (l *Limiter) Admit(ctx context.Context, p tier.Principal, path string) (Decision, error) {
	resolver := l.resolver.Load()
	tierID := resolver.ResolveTier(p)

	policy, ok := resolver.PolicyFor(tierID, path)
	if !ok {
		l.metrics.RecordDecision(tierID, "unlimited")
		return Decision{Allowed: true, Tier: tierID}, nil
	}

	now := l.now()
	bucketStart := now.Truncate(policy.Window)
	key := bucketKey(p.ID, policy.Source, bucketStart)

	count, err := l.store.IncrementWithTTL(ctx, key, 1, policy.Window)
	if err != nil {
		if store.IsUnavailable(err) {
			return l.degraded(tierID, err), nil
		}
		return Decision{}, fmt.Errorf("ratelimit: increment bucket: %w", err)
	}

	remaining := policy.Limit - count
	if remaining < 0 {
		remaining = 0
	}

	if count > policy.Limit {
		l.metrics.RecordDecision(tierID, "denied")
		return Decision{
			Allowed:    false,
			RetryAfter: bucketStart.Add(policy.Window).Sub(now),
			Limit:      policy.Limit,
			Remaining:  0,
			Tier:       tierID,
		}, nil
	}

	l.metrics.RecordDecision(tierID, "allowed")
	return Decision{
		Allowed:   true,
		Limit:     policy.Limit,
		Remaining: remaining,
		Tier:      tierID,
	}, nil
}

// degraded applies the configured failure mode during a store outage.
func (l *Limiter) degraded(tierID string, err error) Decision {
	l.metrics.RecordStoreFailure(string(l.mode))

	if l.mode == FailClosed {
		l.logger.Warn("store unavailable, failing closed",
			"tier", tierID,
			"error", err,
		)
		// No bucket state to compute a precise retry hint from; advise a
		// short pause so clients back off while the store recovers.
		return Decision{Allowed: false, RetryAfter: time.Second, Tier: tierID}
	}

	l.logger.Warn("store unavailable, failing open",
		"tier", tierID,
		"error", err,
	)
	return Decision{Allowed: true, Tier: tierID}
}

// bucketKey builds the store key for one (principal, pattern, bucket)
// counter.
func bucketKey(principalID, pattern string, bucketStart time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", principalID, pattern, bucketStart.Unix())
}
