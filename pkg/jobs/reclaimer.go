package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"helios-hq/aegis/pkg/store"
)

// Reclaimer periodically sweeps the queue for jobs orphaned by dead
// workers and returns them to the queue. It runs on a cron schedule so
// one expression in the config controls the recovery latency.
type Reclaimer struct {
	dispatcher *Dispatcher
	cron       *cron.Cron
	logger     *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewReclaimer creates a reclaimer for the dispatcher's queue.
func NewReclaimer(d *Dispatcher) *Reclaimer {
	return &Reclaimer{
		dispatcher: d,
		cron:       cron.New(),
		logger:     d.logger.With("component", "jobs.reclaimer"),
	}
}

// Start schedules the sweep. An empty schedule disables reclamation,
// which is only safe when workers never die holding a lease.
func (r *Reclaimer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	schedule := r.dispatcher.cfg.ReclaimSchedule
	if schedule == "" {
		r.logger.Info("reclaim schedule not configured, skipping reclaimer")
		return nil
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("jobs: invalid reclaim schedule %q: %w", schedule, err)
	}

	if _, err := r.cron.AddFunc(schedule, func() {
		r.sweep(ctx)
	}); err != nil {
		return fmt.Errorf("jobs: schedule reclaim sweep: %w", err)
	}

	r.cron.Start()
	r.running = true
	r.logger.Info("reclaimer started", "schedule", schedule)

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (r *Reclaimer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron != nil && r.running {
		<-r.cron.Stop().Done()
		r.running = false
		r.logger.Info("reclaimer stopped")
	}
}

func (r *Reclaimer) sweep(ctx context.Context) {
	reclaimed, err := r.dispatcher.Reclaim(ctx)
	if err != nil {
		r.logger.Error("reclaim sweep failed", "error", err)
		return
	}
	if reclaimed > 0 {
		r.logger.Info("reclaim sweep completed", "reclaimed", reclaimed)
	} else {
		r.logger.Debug("reclaim sweep completed, nothing to reclaim")
	}
}

// Reclaim scans the live slot range once and requeues every job whose
// worker is presumed dead: running jobs with an expired lease, and
// claimed jobs that never started because their worker died between the
// claim and the lease write. Jobs out of attempts are abandoned instead.
//
// The scan starts past the floor, the highest slot below which everything
// is known to be drained, and advances the floor over any slots that have
// since been released so repeated sweeps stay cheap.
func (d *Dispatcher) Reclaim(ctx context.Context) (int, error) {
	floor, err := d.readCounter(ctx, keyFloor)
	if err != nil {
		return 0, err
	}
	tail, err := d.readCounter(ctx, keyTail)
	if err != nil {
		return 0, err
	}
	cursor, err := d.readCounter(ctx, keyCursor)
	if err != nil {
		return 0, err
	}

	now := d.now()
	reclaimed := 0
	newFloor := floor
	advancing := true

	for seq := floor + 1; seq <= tail; seq++ {
		raw, err := d.store.Get(ctx, slotKey(seq))
		if errors.Is(err, store.ErrNotFound) {
			if advancing {
				newFloor = seq
			}
			continue
		}
		if err != nil {
			return reclaimed, fmt.Errorf("jobs: read slot %d: %w", seq, err)
		}
		advancing = false

		job, err := d.Lookup(ctx, string(raw))
		if errors.Is(err, ErrJobNotFound) {
			// Record expired out from under its slot.
			d.store.Delete(ctx, slotKey(seq))
			continue
		}
		if err != nil {
			return reclaimed, err
		}

		switch {
		case job.Status == StatusRunning && !job.LeaseExpiresAt.After(now):
			// Lease expired: the worker died or is wedged past its
			// deadline. Either way the attempt is spent.

		case job.Status != StatusRunning && !job.Status.Terminal() &&
			seq <= cursor && now.Sub(job.NextRunAt) > d.cfg.LeaseDuration:
			// Claimed long ago but never marked running: the worker died
			// between taking the ticket and writing the lease.

		default:
			continue
		}

		if job.Attempt >= job.MaxAttempts {
			if err := d.finalize(ctx, job, seq, StatusAbandoned, "lease expired with no attempts left"); err != nil {
				return reclaimed, err
			}
			continue
		}

		job.Status = StatusQueued
		job.NextRunAt = now
		job.LeaseExpiresAt = time.Time{}
		if err := d.persist(ctx, job, 0); err != nil {
			return reclaimed, err
		}
		if _, err := d.assignSlot(ctx, job.ID); err != nil {
			return reclaimed, err
		}
		if err := d.store.Delete(ctx, slotKey(seq)); err != nil && !errors.Is(err, store.ErrNotFound) {
			return reclaimed, fmt.Errorf("jobs: release slot %d: %w", seq, err)
		}
		reclaimed++
		d.logger.Info("job reclaimed",
			"job_id", job.ID,
			"handler", job.Handler,
			"attempt", job.Attempt,
		)
	}

	if newFloor > floor {
		if err := d.store.Set(ctx, keyFloor, []byte(strconv.FormatInt(newFloor, 10)), 0); err != nil {
			return reclaimed, fmt.Errorf("jobs: advance floor: %w", err)
		}
	}

	d.metrics.RecordReclaimed(reclaimed)
	return reclaimed, nil
}
