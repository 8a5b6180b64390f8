package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"unileads/internal/clinic"
	"unileads/internal/jobs"
	"unileads/internal/lead"
	"unileads/internal/outbox"
	"unileads/internal/rentals"
	"unileads/internal/tenant"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}
	return gdb, nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&tenant.Tenant{},
		&tenant.FeatureFlag{},
		&tenant.AutomationRule{},
		&tenant.MessageTemplate{},
		&rentals.Occupancy{},
		&rentals.Due{},
		&clinic.Appointment{},
		&lead.Contact{},
		&lead.Lead{},
		&outbox.Message{},
		&jobs.JobRun{},
	); err != nil {
		return err
	}

	// Run-claiming lock: at most one non-failed ledger row per (job, run_key).
	// A failed row stays behind for forced reopening.
	if err := gdb.Exec(`
create unique index if not exists uq_job_runs_active
on job_runs(job_name, run_key)
where status <> 'failed';
`).Error; err != nil {
		return err
	}

	// The sole duplicate-prevention mechanism for outbox messages across
	// reruns and retries. Soft-deleted rows release the key.
	if err := gdb.Exec(`
create unique index if not exists uq_outbox_tenant_idem
on outbox_messages(tenant_id, idempotency_key)
where deleted_at is null;
`).Error; err != nil {
		return err
	}

	// One live due per (tenant, occupancy, billing period).
	if err := gdb.Exec(`
create unique index if not exists uq_dues_tenant_occ_period
on dues(tenant_id, occupancy_id, period_start)
where deleted_at is null;
`).Error; err != nil {
		return err
	}

	// Helpful indexes
	stmts := []string{
		`create index if not exists idx_outbox_scheduled on outbox_messages(status, scheduled_at);`,
		`create index if not exists idx_job_runs_status on job_runs(job_name, status, started_at);`,
		`create index if not exists idx_leads_tenant_created on leads(tenant_id, created_at desc);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
