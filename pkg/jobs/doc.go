// Package jobs is a store-backed background job queue: named handlers,
// a fixed worker pool, exponential-backoff retries with an attempt
// budget, and lease-based recovery of work orphaned by dead workers.
//
// The queue is built entirely on the shared store's atomic counter
// operation, so every backend that satisfies the store contract can
// host it and multiple processes can share one queue.
package jobs
