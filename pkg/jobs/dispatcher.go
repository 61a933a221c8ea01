package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"helios-hq/aegis/pkg/config"
	"helios-hq/aegis/pkg/store"
	"helios-hq/aegis/pkg/telemetry/metrics"
)

// Handler executes one job attempt. The context carries the execution
// timeout; handlers must honor cancellation or the attempt is counted as
// failed anyway once the deadline passes.
type Handler func(ctx context.Context, payload []byte) error

// Dispatcher runs a store-backed job queue: producers enqueue named work,
// a fixed worker pool claims and executes it, failed attempts retry with
// exponential backoff until the attempt budget runs out.
//
// The queue needs nothing from the store beyond the basic contract. Two
// counters drive it: the tail counter assigns a slot to each enqueued
// job, the cursor counter hands each slot to exactly one claimer. Because
// both are atomic increments, no two workers can pop the same slot even
// across processes sharing the store.
type Dispatcher struct {
	store   store.Store
	cfg     config.JobsConfig
	logger  *slog.Logger
	metrics *metrics.JobMetrics
	now     func() time.Time

	mu       sync.RWMutex
	handlers map[string]Handler

	runMu   sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. Default: slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithMetrics sets the job metric group. Nil disables recording.
func WithMetrics(jm *metrics.JobMetrics) Option {
	return func(d *Dispatcher) { d.metrics = jm }
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher creates a dispatcher over the given store. Call Register
// for every handler before Start; Enqueue rejects unregistered names.
func NewDispatcher(st store.Store, cfg *config.JobsConfig, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:    st,
		cfg:      *cfg,
		logger:   slog.Default(),
		now:      time.Now,
		handlers: make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "jobs")
	return d
}

// Register binds a handler name to its implementation. Registering the
// same name twice is a programming error and is rejected.
func (d *Dispatcher) Register(name string, h Handler) error {
	if name == "" || h == nil {
		return errors.New("jobs: handler name and function are required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.handlers[name]; exists {
		return fmt.Errorf("jobs: handler %q already registered", name)
	}
	d.handlers[name] = h
	return nil
}

func (d *Dispatcher) handler(name string) (Handler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handlers[name]
	return h, ok
}

// EnqueueOption adjusts a single enqueue.
type EnqueueOption func(*Job)

// WithMaxAttempts overrides the configured default attempt budget.
func WithMaxAttempts(n int) EnqueueOption {
	return func(j *Job) { j.MaxAttempts = n }
}

// WithDelay defers the first execution by the given duration.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(j *Job) { j.NextRunAt = j.NextRunAt.Add(delay) }
}

// Enqueue persists a job and places it on the queue, returning its id.
// The handler name is checked against the registry immediately so a typo
// fails at the call site, not hours later in a worker log.
//
// A store outage surfaces as ErrUnavailable; the job was not accepted and
// the caller decides whether that is fatal for its own request.
func (d *Dispatcher) Enqueue(ctx context.Context, handler string, payload []byte, opts ...EnqueueOption) (string, error) {
	if _, ok := d.handler(handler); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownHandler, handler)
	}

	now := d.now()
	job := &Job{
		ID:          uuid.NewString(),
		Handler:     handler,
		Payload:     payload,
		Status:      StatusQueued,
		MaxAttempts: d.cfg.DefaultMaxAttempts,
		NextRunAt:   now,
		EnqueuedAt:  now,
	}
	for _, opt := range opts {
		opt(job)
	}
	if job.MaxAttempts < 1 {
		job.MaxAttempts = 1
	}

	if err := d.persist(ctx, job, 0); err != nil {
		return "", err
	}
	if _, err := d.assignSlot(ctx, job.ID); err != nil {
		return "", err
	}

	d.metrics.RecordEnqueued(handler)
	d.logger.Debug("job enqueued",
		"job_id", job.ID,
		"handler", handler,
		"max_attempts", job.MaxAttempts,
	)
	return job.ID, nil
}

// Lookup returns the current record for a job id. Terminal records stay
// queryable for the configured retention window, then expire.
func (d *Dispatcher) Lookup(ctx context.Context, id string) (*Job, error) {
	raw, err := d.store.Get(ctx, jobKey(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("jobs: lookup %s: %w", id, err)
	}
	return decodeJob(raw)
}

// persist writes the job record. A zero ttl keeps the record live; a
// positive ttl is used for terminal records so they age out.
func (d *Dispatcher) persist(ctx context.Context, job *Job, ttl time.Duration) error {
	data, err := encodeJob(job)
	if err != nil {
		return err
	}
	if err := d.store.Set(ctx, jobKey(job.ID), data, ttl); err != nil {
		return fmt.Errorf("jobs: persist job %s: %w", job.ID, err)
	}
	return nil
}

// assignSlot appends the job to the queue and returns its slot number.
func (d *Dispatcher) assignSlot(ctx context.Context, jobID string) (int64, error) {
	seq, err := d.store.IncrementWithTTL(ctx, keyTail, 1, 0)
	if err != nil {
		return 0, fmt.Errorf("jobs: advance tail: %w", err)
	}
	if err := d.store.Set(ctx, slotKey(seq), []byte(jobID), 0); err != nil {
		return 0, fmt.Errorf("jobs: write slot %d: %w", seq, err)
	}
	return seq, nil
}

// readCounter reads a queue counter, treating a missing key as zero.
func (d *Dispatcher) readCounter(ctx context.Context, key string) (int64, error) {
	raw, err := d.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("jobs: read %s: %w", key, err)
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("jobs: %s holds %q: %w", key, raw, store.ErrNotCounter)
	}
	return n, nil
}

// backoffDelay returns the retry delay after the given failed attempt:
// the base doubles per attempt and is capped at the configured maximum.
func (d *Dispatcher) backoffDelay(attempt int) time.Duration {
	delay := d.cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= d.cfg.BackoffMax {
			return d.cfg.BackoffMax
		}
	}
	if delay > d.cfg.BackoffMax {
		return d.cfg.BackoffMax
	}
	return delay
}
