package jobs_test

import (
	"context"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"unileads/internal/clinic"
	"unileads/internal/jobs"
	"unileads/internal/outbox"
	"unileads/internal/tenant"
)

func seedClinicTenant(t *testing.T, gdb *gorm.DB, cfg datatypes.JSONMap) tenant.Tenant {
	t.Helper()
	tn := tenant.Tenant{Name: "Smile Dental", Status: tenant.StatusActive}
	if err := gdb.Create(&tn).Error; err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	if err := gdb.Create(&tenant.FeatureFlag{TenantID: tn.ID, Key: jobs.FeatureReminders, Enabled: true}).Error; err != nil {
		t.Fatalf("create flag: %v", err)
	}
	if cfg == nil {
		cfg = datatypes.JSONMap{}
	}
	if err := gdb.Create(&tenant.AutomationRule{TenantID: tn.ID, Job: jobs.JobReminders, Enabled: true, Config: cfg}).Error; err != nil {
		t.Fatalf("create rule: %v", err)
	}
	return tn
}

func seedAppointment(t *testing.T, gdb *gorm.DB, tn tenant.Tenant, startsAt time.Time, status string) clinic.Appointment {
	t.Helper()
	a := clinic.Appointment{
		TenantID:    tn.ID,
		PatientName: "Ravi",
		Phone:       "+918887776665",
		StartsAt:    startsAt,
		Status:      status,
	}
	if err := gdb.Create(&a).Error; err != nil {
		t.Fatalf("create appointment: %v", err)
	}
	return a
}

var reminderNow = time.Date(2024, 5, 1, 9, 20, 0, 0, time.UTC)

func TestReminders_QueuesWithinWindow(t *testing.T) {
	gdb := newTestDB(t)
	tn := seedClinicTenant(t, gdb, datatypes.JSONMap{"window_hours": 24, "lead_hours": 2})
	in := seedAppointment(t, gdb, tn, reminderNow.Add(5*time.Hour), clinic.ApptConfirmed)
	seedAppointment(t, gdb, tn, reminderNow.Add(30*time.Hour), clinic.ApptConfirmed) // outside window
	seedAppointment(t, gdb, tn, reminderNow.Add(3*time.Hour), clinic.ApptCancelled)  // cancelled

	r := newRunner(gdb)
	res, err := r.Run(context.Background(), jobs.JobReminders, jobs.RunOptions{Now: reminderNow})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.RunKey != "clinic_appt_reminders:2024-05-01T09" {
		t.Fatalf("run key = %q", res.RunKey)
	}
	if res.Summary.RemindersCreated != 1 || res.Summary.OutboxCreated != 1 {
		t.Fatalf("summary = %+v", res.Summary)
	}

	var msg outbox.Message
	if err := gdb.First(&msg, "tenant_id = ?", tn.ID).Error; err != nil {
		t.Fatalf("find outbox: %v", err)
	}
	wantKey := "clinic_appt_reminders:" + in.ID.String() + ":2024-05-01T09"
	if msg.IdempotencyKey != wantKey {
		t.Fatalf("key = %q, want %q", msg.IdempotencyKey, wantKey)
	}
	// send time = starts_at - lead (3h from now, still in the future)
	if !msg.ScheduledAt.Equal(reminderNow.Add(3 * time.Hour)) {
		t.Fatalf("scheduled_at = %v", msg.ScheduledAt)
	}
}

func TestReminders_SendTimeFlooredToNow(t *testing.T) {
	gdb := newTestDB(t)
	tn := seedClinicTenant(t, gdb, datatypes.JSONMap{"lead_hours": 24})
	seedAppointment(t, gdb, tn, reminderNow.Add(2*time.Hour), clinic.ApptScheduled)

	r := newRunner(gdb)
	if _, err := r.Run(context.Background(), jobs.JobReminders, jobs.RunOptions{Now: reminderNow}); err != nil {
		t.Fatalf("run: %v", err)
	}

	var msg outbox.Message
	if err := gdb.First(&msg, "tenant_id = ?", tn.ID).Error; err != nil {
		t.Fatal(err)
	}
	if !msg.ScheduledAt.Equal(reminderNow) {
		t.Fatalf("scheduled_at = %v, want floored to now %v", msg.ScheduledAt, reminderNow)
	}
}

func TestReminders_WindowClamped(t *testing.T) {
	gdb := newTestDB(t)
	// 500 clamps to 72: an appointment 80h out stays outside the window
	tn := seedClinicTenant(t, gdb, datatypes.JSONMap{"window_hours": 500})
	seedAppointment(t, gdb, tn, reminderNow.Add(80*time.Hour), clinic.ApptConfirmed)
	seedAppointment(t, gdb, tn, reminderNow.Add(70*time.Hour), clinic.ApptConfirmed)

	r := newRunner(gdb)
	res, err := r.Run(context.Background(), jobs.JobReminders, jobs.RunOptions{Now: reminderNow})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Summary.RemindersCreated != 1 {
		t.Fatalf("summary = %+v, want exactly the 70h appointment", res.Summary)
	}
}

func TestReminders_RerunSkipsQueuedBucket(t *testing.T) {
	gdb := newTestDB(t)
	tn := seedClinicTenant(t, gdb, nil)
	seedAppointment(t, gdb, tn, reminderNow.Add(4*time.Hour), clinic.ApptConfirmed)

	r := newRunner(gdb)
	ctx := context.Background()

	if _, err := r.Run(ctx, jobs.JobReminders, jobs.RunOptions{Now: reminderNow}); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// crashed-and-forced retry within the same hour bucket
	if err := gdb.Model(&jobs.JobRun{}).
		Where("job_name = ?", jobs.JobReminders).
		Update("status", jobs.StatusFailed).Error; err != nil {
		t.Fatal(err)
	}
	res, err := r.Run(ctx, jobs.JobReminders, jobs.RunOptions{Now: reminderNow.Add(10 * time.Minute), Force: true})
	if err != nil {
		t.Fatalf("forced rerun: %v", err)
	}
	if res.Summary.RemindersCreated != 0 || res.Summary.RemindersSkipped != 1 {
		t.Fatalf("summary = %+v", res.Summary)
	}

	var n int64
	gdb.Model(&outbox.Message{}).Count(&n)
	if n != 1 {
		t.Fatalf("outbox rows = %d, want 1", n)
	}
}

func TestReminders_DryRunPreviewsWithoutWrites(t *testing.T) {
	gdb := newTestDB(t)
	tn := seedClinicTenant(t, gdb, nil)
	seedAppointment(t, gdb, tn, reminderNow.Add(4*time.Hour), clinic.ApptConfirmed)

	r := newRunner(gdb)
	res, err := r.Run(context.Background(), jobs.JobReminders, jobs.RunOptions{Now: reminderNow, Dry: true})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if res.Summary.RemindersCreated != 1 {
		t.Fatalf("summary = %+v", res.Summary)
	}

	var runs, msgs int64
	gdb.Model(&jobs.JobRun{}).Count(&runs)
	gdb.Model(&outbox.Message{}).Count(&msgs)
	if runs != 0 || msgs != 0 {
		t.Fatalf("dry run persisted rows: runs=%d outbox=%d", runs, msgs)
	}
}
