package jobs

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// NoteAutoRecovered marks a run that was reclassified from a stuck `running`
// state by the staleness sweep.
const NoteAutoRecovered = "auto_recovered_stuck_run"

// JobRun is one execution attempt of (job_name, run_key). The partial unique
// index in internal/db allows at most one non-failed row per key; a failed
// row is reopened in place on a forced rerun, so rerun_count survives.
type JobRun struct {
	ID         uint64 `gorm:"primaryKey"`
	JobName    string `gorm:"not null;index:idx_job_runs_name_key,priority:1"`
	RunKey     string `gorm:"not null;index:idx_job_runs_name_key,priority:2"`
	Status     string `gorm:"not null"`
	StartedAt  time.Time
	FinishedAt *time.Time
	RerunCount int    `gorm:"not null;default:0"`
	Note       string `gorm:"type:text"`
	Summary    datatypes.JSON

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Ledger owns run-claiming and finalization. All cross-invocation mutual
// exclusion lives in the unique index; Acquire is a single atomic
// insert-or-skip, never a lock call followed by an insert.
type Ledger struct {
	DB         *gorm.DB
	StaleAfter time.Duration
}

// Acquisition reports whether this invocation won the run for the key.
type Acquisition struct {
	Granted bool
	Run     *JobRun
	// ExistingStatus is the blocking row's status when not granted.
	ExistingStatus string
	// Recovered counts stuck rows reclassified as failed before the attempt.
	Recovered int
}

func (l *Ledger) staleAfter() time.Duration {
	if l.StaleAfter <= 0 {
		return 30 * time.Minute
	}
	return l.StaleAfter
}

// Acquire claims (job, runKey) for execution. A running row started more than
// StaleAfter ago is first force-failed with a recovery note. A failed row only
// yields to a forced attempt, which reopens it in place and increments
// rerun_count.
func (l *Ledger) Acquire(ctx context.Context, job, runKey string, force bool, now time.Time) (Acquisition, error) {
	db := l.DB.WithContext(ctx)

	recovered, err := l.recoverStale(ctx, job, now)
	if err != nil {
		return Acquisition{}, err
	}

	if force {
		res := db.Model(&JobRun{}).
			Where("job_name = ? AND run_key = ? AND status = ?", job, runKey, StatusFailed).
			Updates(map[string]any{
				"status":      StatusRunning,
				"started_at":  now,
				"finished_at": nil,
				"note":        "",
				"rerun_count": gorm.Expr("rerun_count + 1"),
			})
		if res.Error != nil {
			return Acquisition{}, res.Error
		}
		if res.RowsAffected > 0 {
			var run JobRun
			if err := db.Where("job_name = ? AND run_key = ?", job, runKey).
				Order("id desc").First(&run).Error; err != nil {
				return Acquisition{}, err
			}
			return Acquisition{Granted: true, Run: &run, Recovered: recovered}, nil
		}
		// no failed row to reopen, fall through to a fresh insert
	} else {
		// a failed row blocks non-forced attempts; the unique index alone
		// would let a fresh running row in beside it
		var failed int64
		if err := db.Model(&JobRun{}).
			Where("job_name = ? AND run_key = ? AND status = ?", job, runKey, StatusFailed).
			Count(&failed).Error; err != nil {
			return Acquisition{}, err
		}
		if failed > 0 {
			return Acquisition{ExistingStatus: StatusFailed, Recovered: recovered}, nil
		}
	}

	run := JobRun{
		JobName:   job,
		RunKey:    runKey,
		Status:    StatusRunning,
		StartedAt: now,
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&run)
	if res.Error != nil {
		return Acquisition{}, res.Error
	}
	if res.RowsAffected == 0 {
		// another invocation holds or already finished this period
		var existing JobRun
		err := db.Where("job_name = ? AND run_key = ? AND status <> ?", job, runKey, StatusFailed).
			Order("id desc").First(&existing).Error
		if err != nil && err != gorm.ErrRecordNotFound {
			return Acquisition{}, err
		}
		return Acquisition{ExistingStatus: existing.Status, Recovered: recovered}, nil
	}

	return Acquisition{Granted: true, Run: &run, Recovered: recovered}, nil
}

// recoverStale reclassifies running rows of this job older than the staleness
// window as failed. Until the window elapses a stuck run keeps blocking its
// period; that trade-off is deliberate.
func (l *Ledger) recoverStale(ctx context.Context, job string, now time.Time) (int, error) {
	cutoff := now.Add(-l.staleAfter())
	res := l.DB.WithContext(ctx).Model(&JobRun{}).
		Where("job_name = ? AND status = ? AND started_at < ?", job, StatusRunning, cutoff).
		Updates(map[string]any{
			"status":      StatusFailed,
			"finished_at": now,
			"note":        NoteAutoRecovered,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

// Finish finalizes the run with its summary. Partial progress already
// committed stays committed; reruns are safe by idempotency, not rollback.
func (l *Ledger) Finish(ctx context.Context, run *JobRun, status string, sum *Summary, now time.Time) error {
	sum.RerunCount = run.RerunCount

	raw, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	return l.DB.WithContext(ctx).Model(&JobRun{}).
		Where("id = ?", run.ID).
		Updates(map[string]any{
			"status":      status,
			"finished_at": now,
			"summary":     datatypes.JSON(raw),
		}).Error
}

// Latest returns the most recent ledger row for a key, nil when none exists.
func (l *Ledger) Latest(ctx context.Context, job, runKey string) (*JobRun, error) {
	var run JobRun
	err := l.DB.WithContext(ctx).
		Where("job_name = ? AND run_key = ?", job, runKey).
		Order("id desc").First(&run).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}
