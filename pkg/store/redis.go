package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Compile-time interface check.
var _ Store = (*RedisStore)(nil)

// RedisStore implements Store on a Redis server or cluster-compatible
// client. This is the backend of choice when several application instances
// must share one logical admission state.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// incrScript atomically increments a counter and sets its expiry exactly
// once, when the key is created. Redis executes scripts atomically, so
// concurrent callers observe a total order.
//
// KEYS[1] = counter key
// ARGV[1] = delta
// ARGV[2] = TTL in milliseconds (0 = no expiry)
var incrScript = redis.NewScript(`
local v = redis.call("INCRBY", KEYS[1], ARGV[1])
if v == tonumber(ARGV[1]) then
	local ttl = tonumber(ARGV[2])
	if ttl > 0 then
		redis.call("PEXPIRE", KEYS[1], ttl)
	end
end
return v
`)

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix namespaces all keys written by this store.
// Default: "aegis:".
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisStore) { r.keyPrefix = prefix }
}

// NewRedisStore wraps an existing Redis client. The caller owns the client
// configuration (addresses, auth, timeouts); the store only issues commands.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	r := &RedisStore{client: client, keyPrefix: "aegis:"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the value stored under key.
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get: %v", ErrUnavailable, err)
	}
	return val, nil
}

// Set stores value under key with the given TTL. Redis treats a zero
// expiration as "no expiry", matching the Store contract.
func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete removes the key.
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("%w: delete: %v", ErrUnavailable, err)
	}
	return nil
}

// IncrementWithTTL atomically adds delta to the counter under key via a
// server-side script.
func (r *RedisStore) IncrementWithTTL(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	result, err := incrScript.Run(ctx, r.client,
		[]string{r.keyPrefix + key}, delta, ttl.Milliseconds()).Int64()
	if err != nil {
		if strings.Contains(err.Error(), "not an integer") {
			return 0, ErrNotCounter
		}
		return 0, fmt.Errorf("%w: increment: %v", ErrUnavailable, err)
	}
	return result, nil
}

// Ping reports whether the Redis server is reachable.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrUnavailable, err)
	}
	return nil
}

// Close closes the underlying client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
