// Package ratelimit is the admission entry point: a fixed-window rate
// limiter that counts requests per (principal, path pattern) stream in
// the shared store. Window buckets self-expire via store TTL, so no
// background sweeper is needed.
//
// The fixed-window algorithm keeps O(1) state per bucket. The tradeoff
// against a sliding log is a burst of up to 2x the limit across one
// bucket boundary, which the admission layer accepts.
package ratelimit
