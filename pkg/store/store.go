package store

import (
	"context"
	"errors"
	"time"
)

// Store is the shared key-value backend used by the rate limiter, the cache
// manager, and the job dispatcher. Implementations must be safe for
// concurrent use.
//
// The contract is deliberately small: any backend exposing GET, SET-with-TTL,
// DELETE, and an atomic INCREMENT-WITH-TTL satisfies it. No scan, no
// transactions, no pub/sub.
type Store interface {
	// Get returns the value stored under key.
	// Returns ErrNotFound if the key does not exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A ttl of zero means the entry never
	// expires; a positive ttl replaces any previous expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// IncrementWithTTL atomically adds delta to the integer counter stored
	// under key and returns the new value. If the key is created by this
	// call, its expiry is set to ttl exactly once; subsequent increments
	// never extend it. A ttl of zero means the counter never expires.
	//
	// Concurrent callers observe a total order with no lost updates. This
	// is the only synchronization primitive the admission layer relies on.
	IncrementWithTTL(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// Error types for store operations.
var (
	// ErrNotFound is returned by Get when a key is absent or expired.
	ErrNotFound = errors.New("store: key not found")

	// ErrUnavailable is returned when the backend cannot be reached.
	// Callers use this to apply their configured degraded-mode behavior
	// (fail-open admission, cache bypass, enqueue rejection) instead of
	// treating the failure as a silent default.
	ErrUnavailable = errors.New("store: backend unavailable")

	// ErrNotCounter is returned by IncrementWithTTL when the existing
	// value under the key is not an integer counter.
	ErrNotCounter = errors.New("store: value is not a counter")
)

// IsUnavailable reports whether err indicates an unreachable backend.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
