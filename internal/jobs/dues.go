package jobs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"unileads/internal/metrics"
	"unileads/internal/outbox"
	"unileads/internal/render"
	"unileads/internal/rentals"
	"unileads/internal/tenant"
)

const (
	JobDues     = "pg_monthly_dues"
	FeatureDues = "pg_dues"

	duesTemplateKey = "pg_due_notice"

	defaultDueDay = 5
)

const duesFallbackBody = "Hi {{guest}}, your rent of {{amount}} for {{month}} at {{business}} is due on {{due_date}}. Please pay on time."

// DuesRunKey encodes the calendar month the invocation targets.
func DuesRunKey(now time.Time) string {
	return JobDues + ":" + monthStart(now).Format("2006-01-02")
}

func monthStart(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// runDues generates one rent due per active billed occupancy for the current
// month, plus one outbox notice per created due. Everything is keyed so a
// rerun of the same period creates nothing new.
func (r *Runner) runDues(ctx context.Context, opts RunOptions, sum *Summary) error {
	now := opts.now()
	periodStart := monthStart(now)
	periodEnd := periodStart.AddDate(0, 1, 0).AddDate(0, 0, -1)

	eligible, errs, err := r.Tenants.Eligible(ctx, JobDues, FeatureDues)
	if err != nil {
		return fmt.Errorf("listing eligible tenants: %w", err)
	}
	sum.Errors = append(sum.Errors, errs...)

	for _, el := range eligible {
		sum.Tenants++

		dueDay := el.Rule.IntConfig("due_day", defaultDueDay, 1, 28)
		dueDate := time.Date(periodStart.Year(), periodStart.Month(), dueDay, 0, 0, 0, 0, time.UTC)

		occs, err := r.Rentals.ActiveOccupancies(ctx, el.Tenant.ID)
		if err != nil {
			sum.AddError("tenant %s: listing occupancies: %v", el.Tenant.ID, err)
			continue
		}

		tmpl := r.duesTemplate(ctx, el.Tenant.ID)

		for _, occ := range occs {
			if occ.MonthlyRent <= 0 {
				sum.ZeroRentSkipped++
				continue
			}

			if opts.Dry {
				if err := r.previewDue(ctx, occ, periodStart, sum); err != nil {
					sum.AddError("tenant %s occupancy %s: %v", el.Tenant.ID, occ.ID, err)
				}
				continue
			}

			if err := r.createDuePair(ctx, el.Tenant, occ, tmpl, periodStart, periodEnd, dueDate, now, sum); err != nil {
				sum.AddError("tenant %s occupancy %s: %v", el.Tenant.ID, occ.ID, err)
				continue
			}
		}

		if !opts.Dry {
			if err := r.Tenants.TouchLastRun(ctx, el.Rule.ID, now); err != nil {
				sum.AddError("tenant %s: stamping last_run_at: %v", el.Tenant.ID, err)
			}
		}
	}

	return nil
}

// createDuePair creates the due and its outbox notice in one transaction, so
// a concurrent retry can never observe a due without its message. Both
// inserts are idempotent; conflicts are counted, never surfaced.
func (r *Runner) createDuePair(
	ctx context.Context,
	t tenant.Tenant,
	occ rentals.Occupancy,
	tmpl string,
	periodStart, periodEnd, dueDate, now time.Time,
	sum *Summary,
) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		due := &rentals.Due{
			TenantID:    t.ID,
			OccupancyID: occ.ID,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
			DueDate:     dueDate,
			AmountDue:   occ.MonthlyRent,
			AmountPaid:  0,
			Status:      rentals.DueStatusDue,
		}
		created, err := rentals.InsertDue(tx, due)
		if err != nil {
			return err
		}
		if created {
			sum.DuesCreated++
		} else {
			sum.DuesSkipped++
		}

		body := render.Render(tmpl, map[string]string{
			"guest":    occ.GuestName,
			"room":     occ.RoomLabel,
			"business": t.Name,
			"month":    periodStart.Format("January 2006"),
			"amount":   strconv.FormatInt(occ.MonthlyRent, 10),
			"due_date": dueDate.Format("2 Jan 2006"),
		})

		msg := &outbox.Message{
			TenantID:       t.ID,
			Channel:        outbox.ChannelWhatsApp,
			ScheduledAt:    now,
			Phone:          occ.Phone,
			Body:           body,
			SourceTable:    "dues",
			SourceID:       due.ID.String(),
			IdempotencyKey: DueIdempotencyKey(occ.ID.String(), periodStart),
			Meta: map[string]any{
				"job":          JobDues,
				"occupancy_id": occ.ID.String(),
				"period_start": periodStart.Format("2006-01-02"),
			},
		}
		msgCreated, err := outbox.Insert(tx, msg, outbox.InsertIgnore)
		if err != nil {
			return err
		}
		if msgCreated {
			sum.OutboxCreated++
			metrics.OutboxCreated.Inc()
		} else {
			sum.OutboxSkipped++
			metrics.OutboxSkipped.Inc()
		}
		return nil
	})
}

// previewDue mirrors createDuePair's duplicate detection without writing.
func (r *Runner) previewDue(ctx context.Context, occ rentals.Occupancy, periodStart time.Time, sum *Summary) error {
	exists, err := r.Rentals.DueExists(ctx, occ.TenantID, occ.ID, periodStart)
	if err != nil {
		return err
	}
	if exists {
		sum.DuesSkipped++
	} else {
		sum.DuesCreated++
	}

	queued, err := r.Outbox.Exists(ctx, occ.TenantID, DueIdempotencyKey(occ.ID.String(), periodStart))
	if err != nil {
		return err
	}
	if queued {
		sum.OutboxSkipped++
	} else {
		sum.OutboxCreated++
	}
	return nil
}

// DueIdempotencyKey is the outbox dedup key for one occupancy's monthly due.
func DueIdempotencyKey(occupancyID string, periodStart time.Time) string {
	return "pg_due:" + occupancyID + ":" + periodStart.Format("2006-01-02")
}

// duesTemplate resolves the tenant's due-notice template, falling back to the
// built-in body. Lookup errors fall back too; a notice always renders.
func (r *Runner) duesTemplate(ctx context.Context, tenantID uuid.UUID) string {
	tmpl, err := r.Tenants.FindTemplate(ctx, tenantID, duesTemplateKey, outbox.ChannelWhatsApp)
	if err != nil || tmpl == nil {
		return duesFallbackBody
	}
	return tmpl.Body
}
