// Package metrics exposes Prometheus metrics for the admission layer:
// rate-limiter decisions, cache effectiveness, and the background job
// lifecycle. All metric groups tolerate a nil receiver so callers need no
// conditional instrumentation when metrics are disabled.
package metrics
