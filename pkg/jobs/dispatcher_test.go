package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"helios-hq/aegis/pkg/config"
	"helios-hq/aegis/pkg/store"
)

func testJobsConfig() *config.JobsConfig {
	return &config.JobsConfig{
		Workers:            2,
		PollInterval:       2 * time.Millisecond,
		LeaseDuration:      time.Minute,
		ExecTimeout:        250 * time.Millisecond,
		DefaultMaxAttempts: 3,
		BackoffBase:        time.Millisecond,
		BackoffMax:         4 * time.Millisecond,
		ReclaimSchedule:    "@every 1h",
		Retention:          time.Hour,
	}
}

func newTestDispatcher(t *testing.T, cfg *config.JobsConfig) *Dispatcher {
	t.Helper()
	if cfg == nil {
		cfg = testJobsConfig()
	}
	st := store.NewMemoryStore()
	t.Cleanup(func() { st.Close() })
	return NewDispatcher(st, cfg)
}

func waitForStatus(t *testing.T, d *Dispatcher, id string, want Status) *Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	var last *Job
	for time.Now().Before(deadline) {
		job, err := d.Lookup(context.Background(), id)
		if err == nil {
			last = job
			if job.Status == want {
				return job
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	if last != nil {
		t.Fatalf("Job %s never reached %q, last status %q (attempt %d, last_error %q)",
			id, want, last.Status, last.Attempt, last.LastError)
	} else {
		t.Fatalf("Job %s never became visible", id)
	}
	return nil
}

func TestEnqueue_UnregisteredHandlerFails(t *testing.T) {
	d := newTestDispatcher(t, nil)

	_, err := d.Enqueue(context.Background(), "no-such-handler", nil)
	if !errors.Is(err, ErrUnknownHandler) {
		t.Errorf("Expected ErrUnknownHandler, got %v", err)
	}
}

// unavailableStore fails every operation with ErrUnavailable.
type unavailableStore struct{}

func (unavailableStore) Get(context.Context, string) ([]byte, error) {
	return nil, store.ErrUnavailable
}
func (unavailableStore) Set(context.Context, string, []byte, time.Duration) error {
	return store.ErrUnavailable
}
func (unavailableStore) Delete(context.Context, string) error { return store.ErrUnavailable }
func (unavailableStore) IncrementWithTTL(context.Context, string, int64, time.Duration) (int64, error) {
	return 0, store.ErrUnavailable
}
func (unavailableStore) Ping(context.Context) error { return store.ErrUnavailable }
func (unavailableStore) Close() error               { return nil }

func TestEnqueue_StoreUnavailable(t *testing.T) {
	d := NewDispatcher(unavailableStore{}, testJobsConfig())
	if err := d.Register("noop", func(ctx context.Context, payload []byte) error { return nil }); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, err := d.Enqueue(context.Background(), "noop", nil)
	if !store.IsUnavailable(err) {
		t.Errorf("Expected ErrUnavailable to surface, got %v", err)
	}
}

func TestRegister_DuplicateRejected(t *testing.T) {
	d := newTestDispatcher(t, nil)
	noop := func(ctx context.Context, payload []byte) error { return nil }

	if err := d.Register("noop", noop); err != nil {
		t.Fatalf("First Register failed: %v", err)
	}
	if err := d.Register("noop", noop); err == nil {
		t.Error("Expected duplicate registration to be rejected")
	}
}

func TestDispatcher_ExecutesJob(t *testing.T) {
	d := newTestDispatcher(t, nil)

	var got atomic.Value
	d.Register("echo", func(ctx context.Context, payload []byte) error {
		got.Store(string(payload))
		return nil
	})

	ctx := context.Background()
	id, err := d.Enqueue(ctx, "echo", []byte(`{"order":7}`))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Stop()

	job := waitForStatus(t, d, id, StatusSucceeded)
	if job.Attempt != 1 {
		t.Errorf("Expected a single attempt, got %d", job.Attempt)
	}
	if job.CompletedAt.IsZero() {
		t.Error("Expected CompletedAt to be set")
	}
	if payload, _ := got.Load().(string); payload != `{"order":7}` {
		t.Errorf("Handler saw payload %q", payload)
	}
}

func TestDispatcher_RetriesThenSucceeds(t *testing.T) {
	d := newTestDispatcher(t, nil)

	var calls atomic.Int64
	d.Register("flaky", func(ctx context.Context, payload []byte) error {
		if calls.Add(1) <= 2 {
			return errors.New("transient failure")
		}
		return nil
	})

	ctx := context.Background()
	id, _ := d.Enqueue(ctx, "flaky", nil)

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Stop()

	job := waitForStatus(t, d, id, StatusSucceeded)
	if job.Attempt != 3 {
		t.Errorf("Expected success on attempt 3, got %d", job.Attempt)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 handler invocations, got %d", calls.Load())
	}
}

func TestDispatcher_AbandonsAfterMaxAttempts(t *testing.T) {
	d := newTestDispatcher(t, nil)

	var calls atomic.Int64
	d.Register("doomed", func(ctx context.Context, payload []byte) error {
		calls.Add(1)
		return errors.New("permanent failure")
	})

	ctx := context.Background()
	id, _ := d.Enqueue(ctx, "doomed", nil)

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Stop()

	job := waitForStatus(t, d, id, StatusAbandoned)
	if job.Attempt != 3 {
		t.Errorf("Expected 3 attempts before abandonment, got %d", job.Attempt)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 handler invocations, got %d", calls.Load())
	}
	if job.LastError == "" {
		t.Error("Expected LastError to record the final failure")
	}
}

func TestDispatcher_TimeoutCountsAsFailure(t *testing.T) {
	cfg := testJobsConfig()
	cfg.ExecTimeout = 20 * time.Millisecond
	d := newTestDispatcher(t, cfg)

	d.Register("slow", func(ctx context.Context, payload []byte) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx := context.Background()
	id, _ := d.Enqueue(ctx, "slow", nil, WithMaxAttempts(1))

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Stop()

	job := waitForStatus(t, d, id, StatusAbandoned)
	if job.Attempt != 1 {
		t.Errorf("Expected exactly 1 attempt, got %d", job.Attempt)
	}
}

func TestDispatcher_PanicCountsAsFailure(t *testing.T) {
	d := newTestDispatcher(t, nil)

	d.Register("panicky", func(ctx context.Context, payload []byte) error {
		panic("boom")
	})

	ctx := context.Background()
	id, _ := d.Enqueue(ctx, "panicky", nil, WithMaxAttempts(1))

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Stop()

	job := waitForStatus(t, d, id, StatusAbandoned)
	if job.LastError == "" {
		t.Error("Expected the panic to be recorded as the last error")
	}
}

func TestDispatcher_DelayedJob(t *testing.T) {
	d := newTestDispatcher(t, nil)

	started := make(chan time.Time, 1)
	d.Register("later", func(ctx context.Context, payload []byte) error {
		started <- time.Now()
		return nil
	})

	ctx := context.Background()
	enqueued := time.Now()
	id, _ := d.Enqueue(ctx, "later", nil, WithDelay(60*time.Millisecond))

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Stop()

	waitForStatus(t, d, id, StatusSucceeded)
	ran := <-started
	if elapsed := ran.Sub(enqueued); elapsed < 50*time.Millisecond {
		t.Errorf("Expected execution to wait out the delay, ran after %v", elapsed)
	}
}

func TestDispatcher_DrainsManyJobs(t *testing.T) {
	d := newTestDispatcher(t, nil)

	var done atomic.Int64
	d.Register("count", func(ctx context.Context, payload []byte) error {
		done.Add(1)
		return nil
	})

	ctx := context.Background()
	const n = 20
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id, err := d.Enqueue(ctx, "count", nil)
		if err != nil {
			t.Fatalf("Enqueue %d failed: %v", i, err)
		}
		ids = append(ids, id)
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Stop()

	for _, id := range ids {
		waitForStatus(t, d, id, StatusSucceeded)
	}
	if done.Load() != n {
		t.Errorf("Expected %d executions, got %d", n, done.Load())
	}
}

func TestLookup_Unknown(t *testing.T) {
	d := newTestDispatcher(t, nil)

	_, err := d.Lookup(context.Background(), "does-not-exist")
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Expected ErrJobNotFound, got %v", err)
	}
}

func TestBackoffDelay(t *testing.T) {
	cfg := testJobsConfig()
	cfg.BackoffBase = 10 * time.Millisecond
	cfg.BackoffMax = 40 * time.Millisecond
	d := newTestDispatcher(t, cfg)

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 10 * time.Millisecond},
		{2, 20 * time.Millisecond},
		{3, 40 * time.Millisecond},
		{4, 40 * time.Millisecond},
		{10, 40 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := d.backoffDelay(tc.attempt); got != tc.want {
			t.Errorf("Attempt %d: expected delay %v, got %v", tc.attempt, tc.want, got)
		}
	}
}
