package tenant

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusArchived  = "archived"
)

// Tenant is a business account. Tenant CRUD lives in the console backend;
// this core only reads tenants for eligibility and display metadata.
type Tenant struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name    string    `gorm:"not null"`
	Status  string    `gorm:"index;not null;default:'active'"`
	Phone   string
	ReplyTo string

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// FeatureFlag gates a capability per tenant.
type FeatureFlag struct {
	ID       uint64    `gorm:"primaryKey"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_feature_tenant_key,priority:1"`
	Key      string    `gorm:"not null;uniqueIndex:uq_feature_tenant_key,priority:2"`
	Enabled  bool      `gorm:"not null;default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AutomationRule enables one background job for one tenant and carries its
// free-form config. Rows are soft-deleted, never removed.
type AutomationRule struct {
	ID        uint64            `gorm:"primaryKey"`
	TenantID  uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:uq_rule_tenant_job,priority:1"`
	Job       string            `gorm:"not null;uniqueIndex:uq_rule_tenant_job,priority:2;index:idx_rules_job_enabled,priority:1"`
	Enabled   bool              `gorm:"not null;default:false;index:idx_rules_job_enabled,priority:2"`
	Config    datatypes.JSONMap `gorm:"not null"`
	LastRunAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// MessageTemplate is a tenant-authored message body for one template key and
// channel. Generators fall back to built-in defaults when no active row exists.
type MessageTemplate struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index:idx_templates_tenant_key,priority:1"`
	Key      string    `gorm:"not null;index:idx_templates_tenant_key,priority:2"`
	Channel  string    `gorm:"not null"`
	Subject  string
	Body     string `gorm:"type:text;not null"`
	Active   bool   `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (m *MessageTemplate) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
