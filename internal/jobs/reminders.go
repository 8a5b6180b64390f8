package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"unileads/internal/clinic"
	"unileads/internal/metrics"
	"unileads/internal/outbox"
	"unileads/internal/render"
)

const (
	JobReminders     = "clinic_appt_reminders"
	FeatureReminders = "clinic_reminders"

	remindersTemplateKey = "appt_reminder"

	defaultWindowHours = 24
	defaultLeadHours   = 24
)

const remindersFallbackBody = "Hi {{patient}}, this is a reminder for your appointment at {{clinic}} on {{when}}. Reply to reschedule."

// RemindersRunKey encodes the hour bucket the invocation targets. Repeated
// invocations within the same hour collapse onto one ledger row.
func RemindersRunKey(now time.Time) string {
	return JobReminders + ":" + hourBucket(now)
}

func hourBucket(now time.Time) string {
	return now.UTC().Truncate(time.Hour).Format("2006-01-02T15")
}

// runReminders queues one reminder per upcoming appointment per hour bucket.
// The outbox idempotency key carries the bucket, so the generator can fire
// many times an hour without duplicating a single message.
func (r *Runner) runReminders(ctx context.Context, opts RunOptions, sum *Summary) error {
	now := opts.now()
	bucket := hourBucket(now)

	eligible, errs, err := r.Tenants.Eligible(ctx, JobReminders, FeatureReminders)
	if err != nil {
		return fmt.Errorf("listing eligible tenants: %w", err)
	}
	sum.Errors = append(sum.Errors, errs...)

	for _, el := range eligible {
		sum.Tenants++

		windowHours := el.Rule.IntConfig("window_hours", defaultWindowHours, 1, 72)
		leadHours := el.Rule.IntConfig("lead_hours", defaultLeadHours, 1, 168)

		appts, err := r.Clinic.Upcoming(ctx, el.Tenant.ID, now, now.Add(time.Duration(windowHours)*time.Hour))
		if err != nil {
			sum.AddError("tenant %s: listing appointments: %v", el.Tenant.ID, err)
			continue
		}

		tmpl := r.remindersTemplate(ctx, el.Tenant.ID)

		for _, appt := range appts {
			sendAt := appt.StartsAt.Add(-time.Duration(leadHours) * time.Hour)
			if sendAt.Before(now) {
				sendAt = now
			}

			key := ReminderIdempotencyKey(appt.ID.String(), bucket)

			if opts.Dry {
				queued, err := r.Outbox.Exists(ctx, el.Tenant.ID, key)
				if err != nil {
					sum.AddError("tenant %s appointment %s: %v", el.Tenant.ID, appt.ID, err)
					continue
				}
				if queued {
					sum.RemindersSkipped++
					sum.OutboxSkipped++
				} else {
					sum.RemindersCreated++
					sum.OutboxCreated++
				}
				continue
			}

			if err := r.queueReminder(ctx, el.Tenant.Name, tmpl, appt, key, sendAt, sum); err != nil {
				sum.AddError("tenant %s appointment %s: %v", el.Tenant.ID, appt.ID, err)
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

// queueReminder does a plain insert and treats the unique-constraint
// violation as "already queued" for this bucket.
func (r *Runner) queueReminder(ctx context.Context, clinicName, tmpl string, appt clinic.Appointment, key string, sendAt time.Time, sum *Summary) error {
	body := render.Render(tmpl, map[string]string{
		"patient": appt.PatientName,
		"clinic":  clinicName,
		"when":    appt.StartsAt.UTC().Format("2 Jan 2006 15:04"),
	})

	msg := &outbox.Message{
		TenantID:       appt.TenantID,
		Channel:        outbox.ChannelWhatsApp,
		ScheduledAt:    sendAt,
		Phone:          appt.Phone,
		Body:           body,
		SourceTable:    "appointments",
		SourceID:       appt.ID.String(),
		IdempotencyKey: key,
		Meta: map[string]any{
			"job":            JobReminders,
			"appointment_id": appt.ID.String(),
		},
	}

	created, err := r.Outbox.Enqueue(ctx, msg, outbox.InsertStrict)
	if err != nil {
		return err
	}
	if created {
		sum.RemindersCreated++
		sum.OutboxCreated++
		metrics.OutboxCreated.Inc()
	} else {
		sum.RemindersSkipped++
		sum.OutboxSkipped++
		metrics.OutboxSkipped.Inc()
	}
	return nil
}

// ReminderIdempotencyKey is the outbox dedup key for one appointment in one
// hour bucket.
func ReminderIdempotencyKey(appointmentID, bucket string) string {
	return JobReminders + ":" + appointmentID + ":" + bucket
}

func (r *Runner) remindersTemplate(ctx context.Context, tenantID uuid.UUID) string {
	tmpl, err := r.Tenants.FindTemplate(ctx, tenantID, remindersTemplateKey, outbox.ChannelWhatsApp)
	if err != nil || tmpl == nil {
		return remindersFallbackBody
	}
	return tmpl.Body
}
