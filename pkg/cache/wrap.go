package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Wrap turns a computation into a cached computation. The key-deriving
// function maps the computation's argument to a resource identity; results
// are stored as JSON under (prefix, identity) with the given TTL.
//
// The wrapped function behaves exactly like the original on errors: they
// propagate unchanged and nothing is cached. Mutation paths invalidate
// with the same prefix and key function:
//
//	getUser := cache.Wrap(mgr, "user", 10*time.Second,
//		func(id string) string { return id },
//		fetchUser,
//	)
//	...
//	mgr.Invalidate(ctx, "user", userID) // after any mutation of userID
func Wrap[P any, R any](m *Manager, prefix string, ttl time.Duration, keyFn func(P) string, compute func(context.Context, P) (R, error)) func(context.Context, P) (R, error) {
	return func(ctx context.Context, arg P) (R, error) {
		var zero R

		payload, err := m.GetOrCompute(ctx, prefix, keyFn(arg), ttl, func(ctx context.Context) ([]byte, error) {
			result, err := compute(ctx, arg)
			if err != nil {
				return nil, err
			}
			encoded, err := json.Marshal(result)
			if err != nil {
				return nil, fmt.Errorf("cache: encode %s result: %w", prefix, err)
			}
			return encoded, nil
		})
		if err != nil {
			return zero, err
		}

		var result R
		if err := json.Unmarshal(payload, &result); err != nil {
			return zero, fmt.Errorf("cache: decode %s entry: %w", prefix, err)
		}
		return result, nil
	}
}
