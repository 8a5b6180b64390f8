package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"unileads/internal/clinic"
	"unileads/internal/metrics"
	"unileads/internal/outbox"
	"unileads/internal/rentals"
	"unileads/internal/tenant"
)

var ErrUnknownJob = errors.New("unknown job")

// RunOptions control one invocation. Force retries a failed/stuck period; Dry
// previews the run without writing ledger, work items, or outbox rows.
type RunOptions struct {
	Force bool
	Dry   bool
	// Now pins the clock for tests; zero means time.Now().UTC().
	Now time.Time
}

func (o RunOptions) now() time.Time {
	if o.Now.IsZero() {
		return time.Now().UTC()
	}
	return o.Now.UTC()
}

// RunResult is what the trigger endpoint reports back.
type RunResult struct {
	RunKey string
	// Skipped means the lock was held or the period needs force; a normal
	// outcome, not an error.
	Skipped bool
	// LedgerStatus is the blocking row's status when skipped.
	LedgerStatus string
	Summary      *Summary
}

// Runner executes the background automation jobs. It is stateless; every
// invocation races others purely through storage-level atomic operations.
type Runner struct {
	DB      *gorm.DB
	Log     *zap.Logger
	Ledger  *Ledger
	Tenants *tenant.Store
	Rentals *rentals.Store
	Clinic  *clinic.Store
	Outbox  *outbox.Store
}

// Run dispatches by job name. Unknown names are the caller's problem.
func (r *Runner) Run(ctx context.Context, job string, opts RunOptions) (RunResult, error) {
	switch job {
	case JobDues:
		return r.execute(ctx, job, DuesRunKey(opts.now()), opts, r.runDues)
	case JobReminders:
		return r.execute(ctx, job, RemindersRunKey(opts.now()), opts, r.runReminders)
	default:
		return RunResult{}, fmt.Errorf("%w: %q", ErrUnknownJob, job)
	}
}

type runBody func(ctx context.Context, opts RunOptions, sum *Summary) error

func (r *Runner) execute(ctx context.Context, job, runKey string, opts RunOptions, body runBody) (result RunResult, err error) {
	sum := NewSummary(job, runKey, opts.Dry)
	result = RunResult{RunKey: runKey, Summary: sum}

	// Dry mode: full read-side pass, no ledger row, no lock, no writes.
	if opts.Dry {
		if err := body(ctx, opts, sum); err != nil {
			return result, err
		}
		metrics.JobRuns.WithLabelValues(job, "dry").Inc()
		return result, nil
	}

	now := opts.now()
	acq, err := r.Ledger.Acquire(ctx, job, runKey, opts.Force, now)
	if err != nil {
		return result, err
	}
	if acq.Recovered > 0 {
		r.Log.Warn("recovered stuck runs",
			zap.String("job", job),
			zap.Int("count", acq.Recovered),
		)
	}
	if !acq.Granted {
		r.Log.Info("run skipped",
			zap.String("job", job),
			zap.String("run_key", runKey),
			zap.String("existing_status", acq.ExistingStatus),
		)
		metrics.JobRuns.WithLabelValues(job, "skipped").Inc()
		result.Skipped = true
		result.LedgerStatus = acq.ExistingStatus
		return result, nil
	}

	defer func() {
		if p := recover(); p != nil {
			sum.AddError("panic: %v", p)
			_ = r.Ledger.Finish(ctx, acq.Run, StatusFailed, sum, time.Now().UTC())
			metrics.JobRuns.WithLabelValues(job, "failed").Inc()
			err = fmt.Errorf("job %s panicked: %v", job, p)
		}
	}()

	if err := body(ctx, opts, sum); err != nil {
		sum.AddError("run aborted: %v", err)
		if ferr := r.Ledger.Finish(ctx, acq.Run, StatusFailed, sum, time.Now().UTC()); ferr != nil {
			r.Log.Error("failed to finalize ledger", zap.Error(ferr))
		}
		metrics.JobRuns.WithLabelValues(job, "failed").Inc()
		return result, err
	}

	if err := r.Ledger.Finish(ctx, acq.Run, StatusSuccess, sum, time.Now().UTC()); err != nil {
		return result, err
	}
	metrics.JobRuns.WithLabelValues(job, "success").Inc()

	r.Log.Info("run finished",
		zap.String("job", job),
		zap.String("run_key", runKey),
		zap.Int("tenants", sum.Tenants),
		zap.Int("outbox_created", sum.OutboxCreated),
		zap.Int("outbox_skipped", sum.OutboxSkipped),
		zap.Int("errors", len(sum.Errors)),
	)
	return result, nil
}
