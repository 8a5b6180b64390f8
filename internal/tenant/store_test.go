package tenant_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"unileads/internal/db"
	"unileads/internal/tenant"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	gdb, err := gorm.Open(dsn, &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func seed(t *testing.T, gdb *gorm.DB, status string, flagOn, ruleOn bool) tenant.Tenant {
	t.Helper()
	tn := tenant.Tenant{Name: "T " + status, Status: status}
	if err := gdb.Create(&tn).Error; err != nil {
		t.Fatal(err)
	}
	if err := gdb.Create(&tenant.FeatureFlag{TenantID: tn.ID, Key: "pg_dues", Enabled: flagOn}).Error; err != nil {
		t.Fatal(err)
	}
	if err := gdb.Create(&tenant.AutomationRule{
		TenantID: tn.ID,
		Job:      "pg_monthly_dues",
		Enabled:  ruleOn,
		Config:   datatypes.JSONMap{},
	}).Error; err != nil {
		t.Fatal(err)
	}
	return tn
}

func TestEligible(t *testing.T) {
	gdb := newTestDB(t)
	s := &tenant.Store{DB: gdb}
	ctx := context.Background()

	want := seed(t, gdb, tenant.StatusActive, true, true)
	seed(t, gdb, tenant.StatusSuspended, true, true) // wrong status
	seed(t, gdb, tenant.StatusActive, false, true)   // flag off
	seed(t, gdb, tenant.StatusActive, true, false)   // rule off

	// flag row missing entirely counts as off
	noFlag := tenant.Tenant{Name: "No Flag", Status: tenant.StatusActive}
	if err := gdb.Create(&noFlag).Error; err != nil {
		t.Fatal(err)
	}
	if err := gdb.Create(&tenant.AutomationRule{
		TenantID: noFlag.ID, Job: "pg_monthly_dues", Enabled: true, Config: datatypes.JSONMap{},
	}).Error; err != nil {
		t.Fatal(err)
	}

	got, errs, err := s.Eligible(ctx, "pg_monthly_dues", "pg_dues")
	if err != nil {
		t.Fatalf("eligible: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("errs = %v", errs)
	}
	if len(got) != 1 || got[0].Tenant.ID != want.ID {
		t.Fatalf("eligible = %d tenants, want only %s", len(got), want.ID)
	}
	if got[0].Rule.Job != "pg_monthly_dues" {
		t.Fatalf("rule = %+v", got[0].Rule)
	}
}

func TestEligible_SoftDeletedTenantSkipped(t *testing.T) {
	gdb := newTestDB(t)
	s := &tenant.Store{DB: gdb}

	tn := seed(t, gdb, tenant.StatusActive, true, true)
	if err := gdb.Delete(&tenant.Tenant{}, "id = ?", tn.ID).Error; err != nil {
		t.Fatal(err)
	}

	got, errs, err := s.Eligible(context.Background(), "pg_monthly_dues", "pg_dues")
	if err != nil || len(errs) != 0 {
		t.Fatalf("eligible: errs=%v err=%v", errs, err)
	}
	if len(got) != 0 {
		t.Fatalf("eligible = %d, want 0 after soft delete", len(got))
	}
}

func TestFindTemplate(t *testing.T) {
	gdb := newTestDB(t)
	s := &tenant.Store{DB: gdb}
	ctx := context.Background()
	tn := seed(t, gdb, tenant.StatusActive, true, true)

	// nothing yet: nil, nil means "use the built-in default"
	tmpl, err := s.FindTemplate(ctx, tn.ID, "pg_due_notice", "whatsapp")
	if err != nil || tmpl != nil {
		t.Fatalf("tmpl=%v err=%v, want nil/nil", tmpl, err)
	}

	if err := gdb.Create(&tenant.MessageTemplate{
		TenantID: tn.ID, Key: "pg_due_notice", Channel: "whatsapp",
		Body: "custom", Active: false,
	}).Error; err != nil {
		t.Fatal(err)
	}
	tmpl, err = s.FindTemplate(ctx, tn.ID, "pg_due_notice", "whatsapp")
	if err != nil || tmpl != nil {
		t.Fatalf("inactive template must not match, got %v err=%v", tmpl, err)
	}

	if err := gdb.Create(&tenant.MessageTemplate{
		TenantID: tn.ID, Key: "pg_due_notice", Channel: "whatsapp",
		Body: "active custom", Active: true,
	}).Error; err != nil {
		t.Fatal(err)
	}
	tmpl, err = s.FindTemplate(ctx, tn.ID, "pg_due_notice", "whatsapp")
	if err != nil || tmpl == nil || tmpl.Body != "active custom" {
		t.Fatalf("tmpl=%+v err=%v", tmpl, err)
	}

	// channel mismatch
	tmpl, err = s.FindTemplate(ctx, tn.ID, "pg_due_notice", "sms")
	if err != nil || tmpl != nil {
		t.Fatalf("wrong channel must not match, got %v err=%v", tmpl, err)
	}
}

func TestGet_NotFound(t *testing.T) {
	gdb := newTestDB(t)
	s := &tenant.Store{DB: gdb}

	if _, err := s.Get(context.Background(), uuid.New()); !errors.Is(err, tenant.ErrNotFound) {
		t.Fatalf("err = %v, want tenant not found", err)
	}
}
