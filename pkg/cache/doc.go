// Package cache memoizes computation results in the shared store, keyed
// by a prefix plus a resource identity, with explicit invalidation for
// mutation paths. The generic Wrap helper turns any computation with a
// JSON-serializable result into a cached computation without runtime
// interception.
package cache
