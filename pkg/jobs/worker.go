package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"helios-hq/aegis/pkg/store"
)

// slotReadRetries bounds the wait for an enqueuer that has advanced the
// tail but not yet written the slot key. The gap is normally microseconds;
// a slot still missing after the retries means the producer died mid
// enqueue and the slot is skipped.
const (
	slotReadRetries = 5
	slotReadDelay   = 10 * time.Millisecond
)

// Start launches the worker pool. Workers poll the queue, claim jobs, and
// execute them until the context is canceled or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	if d.started {
		return errors.New("jobs: dispatcher already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.started = true

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.workerLoop(runCtx, i)
	}

	d.logger.Info("worker pool started",
		"workers", d.cfg.Workers,
		"poll_interval", d.cfg.PollInterval,
		"exec_timeout", d.cfg.ExecTimeout,
	)
	return nil
}

// Stop cancels the workers and waits for in-flight handlers to return.
func (d *Dispatcher) Stop() {
	d.runMu.Lock()
	if !d.started {
		d.runMu.Unlock()
		return
	}
	d.cancel()
	d.started = false
	d.runMu.Unlock()

	d.wg.Wait()
	d.logger.Info("worker pool stopped")
}

func (d *Dispatcher) workerLoop(ctx context.Context, id int) {
	defer d.wg.Done()
	logger := d.logger.With("worker", id)

	for {
		if ctx.Err() != nil {
			return
		}

		executed, err := d.runNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("queue poll failed", "error", err)
		}
		if executed {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.cfg.PollInterval):
		}
	}
}

// runNext claims at most one slot and executes the job behind it. It
// reports whether a handler actually ran, so idle workers back off to the
// poll interval while busy ones keep draining.
func (d *Dispatcher) runNext(ctx context.Context) (bool, error) {
	tail, err := d.readCounter(ctx, keyTail)
	if err != nil {
		return false, err
	}
	cursor, err := d.readCounter(ctx, keyCursor)
	if err != nil {
		return false, err
	}
	if cursor >= tail {
		return false, nil
	}

	seq, err := d.store.IncrementWithTTL(ctx, keyCursor, 1, 0)
	if err != nil {
		return false, fmt.Errorf("jobs: advance cursor: %w", err)
	}
	if seq > tail {
		// Another worker won the race for the last slot. Hand the ticket
		// back so a slot enqueued later under this number is not skipped.
		tail, err = d.readCounter(ctx, keyTail)
		if err != nil || seq > tail {
			if _, decErr := d.store.IncrementWithTTL(ctx, keyCursor, -1, 0); decErr != nil {
				d.logger.Error("cursor give-back failed, slot may be skipped",
					"seq", seq,
					"error", decErr,
				)
			}
			return false, err
		}
	}

	jobID, err := d.slotJob(ctx, seq)
	if errors.Is(err, store.ErrNotFound) {
		d.logger.Warn("slot has no job record, skipping", "seq", seq)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	job, err := d.Lookup(ctx, jobID)
	if errors.Is(err, ErrJobNotFound) {
		d.store.Delete(ctx, slotKey(seq))
		return false, nil
	}
	if err != nil {
		return false, err
	}

	now := d.now()
	switch {
	case job.Status.Terminal():
		// Stale slot left behind by an interrupted transition.
		d.store.Delete(ctx, slotKey(seq))
		return false, nil

	case job.Status == StatusRunning:
		// Live lease: a duplicate slot for a job another worker owns.
		// Expired lease: leave the slot for the reclaimer sweep.
		if job.LeaseExpiresAt.After(now) {
			d.store.Delete(ctx, slotKey(seq))
		}
		return false, nil

	case job.NextRunAt.After(now):
		// Not due yet (backoff or delayed enqueue). Send it to the back
		// of the queue and let this worker go idle.
		if _, err := d.assignSlot(ctx, job.ID); err != nil {
			return false, err
		}
		d.store.Delete(ctx, slotKey(seq))
		return false, nil
	}

	return true, d.execute(ctx, job, seq)
}

// execute runs one attempt of a claimed job and applies the outcome.
func (d *Dispatcher) execute(ctx context.Context, job *Job, seq int64) error {
	handler, ok := d.handler(job.Handler)
	if !ok {
		// Registered at enqueue time but gone now, so the binary changed
		// underneath the queue. Nothing can ever run this job.
		return d.finalize(ctx, job, seq, StatusAbandoned, "handler no longer registered")
	}

	now := d.now()
	job.Status = StatusRunning
	job.Attempt++
	job.StartedAt = now
	job.LeaseExpiresAt = now.Add(d.cfg.LeaseDuration)
	if err := d.persist(ctx, job, 0); err != nil {
		// Without a persisted lease the reclaimer cannot see this claim.
		// Do not execute; the stuck-slot sweep will requeue the job.
		return err
	}

	execCtx, cancel := context.WithTimeout(ctx, d.cfg.ExecTimeout)
	start := time.Now()
	err := runHandler(execCtx, handler, job.Payload)
	cancel()
	d.metrics.ObserveDuration(job.Handler, time.Since(start))

	if err == nil {
		d.logger.Debug("job succeeded",
			"job_id", job.ID,
			"handler", job.Handler,
			"attempt", job.Attempt,
		)
		return d.finalize(ctx, job, seq, StatusSucceeded, "")
	}

	d.logger.Warn("job attempt failed",
		"job_id", job.ID,
		"handler", job.Handler,
		"attempt", job.Attempt,
		"max_attempts", job.MaxAttempts,
		"error", err,
	)

	if job.Attempt >= job.MaxAttempts {
		return d.finalize(ctx, job, seq, StatusAbandoned, err.Error())
	}
	return d.retry(ctx, job, seq, err)
}

// runHandler invokes the handler with panic containment: a panicking
// handler fails its attempt instead of killing the worker pool.
func runHandler(ctx context.Context, h Handler, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, payload)
}

// finalize moves a job to a terminal status, ages the record out after
// the retention window, and releases its slot.
func (d *Dispatcher) finalize(ctx context.Context, job *Job, seq int64, status Status, lastError string) error {
	job.Status = status
	job.CompletedAt = d.now()
	job.LeaseExpiresAt = time.Time{}
	if lastError != "" {
		job.LastError = lastError
	}

	if err := d.persist(ctx, job, d.cfg.Retention); err != nil {
		return err
	}
	if err := d.store.Delete(ctx, slotKey(seq)); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("jobs: release slot %d: %w", seq, err)
	}

	d.metrics.RecordCompleted(job.Handler, string(status))
	return nil
}

// retry requeues a failed job with exponential backoff.
func (d *Dispatcher) retry(ctx context.Context, job *Job, seq int64, cause error) error {
	delay := d.backoffDelay(job.Attempt)
	job.Status = StatusFailed
	job.LastError = cause.Error()
	job.NextRunAt = d.now().Add(delay)
	job.LeaseExpiresAt = time.Time{}

	if err := d.persist(ctx, job, 0); err != nil {
		return err
	}
	if _, err := d.assignSlot(ctx, job.ID); err != nil {
		return err
	}
	if err := d.store.Delete(ctx, slotKey(seq)); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("jobs: release slot %d: %w", seq, err)
	}

	d.metrics.RecordRetry(job.Handler)
	d.logger.Debug("job retry scheduled",
		"job_id", job.ID,
		"handler", job.Handler,
		"attempt", job.Attempt,
		"delay", delay,
	)
	return nil
}

// slotJob resolves a claimed slot to its job id, tolerating the short
// window between a producer's tail advance and its slot write.
func (d *Dispatcher) slotJob(ctx context.Context, seq int64) (string, error) {
	for i := 0; ; i++ {
		raw, err := d.store.Get(ctx, slotKey(seq))
		if err == nil {
			return string(raw), nil
		}
		if !errors.Is(err, store.ErrNotFound) || i >= slotReadRetries {
			return "", err
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(slotReadDelay):
		}
	}
}
