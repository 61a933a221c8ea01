// Package store defines the TTL-capable key-value backend shared by the
// admission layer and provides three implementations:
//
//   - MemoryStore: in-process map, fast, no persistence. The default.
//   - SQLiteStore: durable single-instance storage via modernc.org/sqlite.
//   - RedisStore: shared storage for multi-instance deployments via
//     github.com/redis/go-redis.
//
// All implementations guarantee the same semantics for the atomic
// IncrementWithTTL operation: no lost updates under concurrency, and the
// expiry is set exactly once when the key is created.
package store
