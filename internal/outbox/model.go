package outbox

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ChannelInternal = "internal"
	ChannelWhatsApp = "whatsapp"
	ChannelSMS      = "sms"
	ChannelEmail    = "email"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusSent       = "sent"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// Message is one durable outbound message. Rows are only ever soft-deleted;
// the partial unique index on (tenant_id, idempotency_key) over live rows is
// the sole duplicate-prevention mechanism across job reruns and retries.
type Message struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index:idx_outbox_tenant_status,priority:1"`
	Channel  string    `gorm:"not null"`
	Status   string    `gorm:"not null;default:'queued';index:idx_outbox_tenant_status,priority:2"`

	ScheduledAt time.Time `gorm:"not null"`

	ContactID *uuid.UUID `gorm:"type:uuid"`
	Phone     string
	Email     string

	Subject string
	Body    string `gorm:"type:text;not null"`

	// Source entity the message was generated from (audit/traceability).
	SourceTable string
	SourceID    string

	IdempotencyKey string `gorm:"not null"`

	// Meta carries job provenance and manual-action audit entries such as
	// manual_send_opened_at.
	Meta datatypes.JSONMap

	LastError string

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (Message) TableName() string { return "outbox_messages" }

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Status == "" {
		m.Status = StatusQueued
	}
	if m.ScheduledAt.IsZero() {
		m.ScheduledAt = time.Now().UTC()
	}
	return nil
}
