package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a job.
type Status string

const (
	// StatusQueued means the job is waiting for a worker.
	StatusQueued Status = "queued"

	// StatusRunning means a worker holds the job under a lease.
	StatusRunning Status = "running"

	// StatusSucceeded means the handler completed without error. Terminal.
	StatusSucceeded Status = "succeeded"

	// StatusFailed means the last attempt failed and the job is waiting
	// out its backoff before the next one.
	StatusFailed Status = "failed"

	// StatusAbandoned means the job exhausted its attempt budget. Terminal.
	StatusAbandoned Status = "abandoned"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusAbandoned
}

var (
	// ErrUnknownHandler is returned by Enqueue when no handler is
	// registered under the requested name.
	ErrUnknownHandler = errors.New("jobs: unknown handler")

	// ErrJobNotFound is returned by Lookup for an unknown or expired job id.
	ErrJobNotFound = errors.New("jobs: job not found")
)

// Job is the persisted record of one unit of background work. It lives in
// the shared store under jobs:job:<id> and is updated on every lifecycle
// transition, so any process sharing the store sees the same view.
type Job struct {
	ID          string          `json:"id"`
	Handler     string          `json:"handler"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Status      Status          `json:"status"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`

	// NextRunAt is the earliest time a worker may execute the job.
	NextRunAt time.Time `json:"next_run_at"`

	// LeaseExpiresAt is set while the job is running. A running job whose
	// lease has expired is presumed orphaned by a dead worker and is
	// eligible for reclamation.
	LeaseExpiresAt time.Time `json:"lease_expires_at,omitempty"`

	LastError   string    `json:"last_error,omitempty"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// Store key layout. The queue itself is two counters: tail hands out slot
// numbers to producers, cursor hands out claim tickets to workers. Slot
// keys map a slot number to a job id; floor remembers how far the
// reclaimer has verified the slot range is fully drained.
const (
	keyTail   = "jobs:tail"
	keyCursor = "jobs:cursor"
	keyFloor  = "jobs:floor"
)

func jobKey(id string) string {
	return "jobs:job:" + id
}

func slotKey(seq int64) string {
	return fmt.Sprintf("jobs:slot:%d", seq)
}

func encodeJob(job *Job) ([]byte, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("jobs: encode job %s: %w", job.ID, err)
	}
	return data, nil
}

func decodeJob(data []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("jobs: decode job record: %w", err)
	}
	return &job, nil
}
