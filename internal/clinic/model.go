package clinic

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ApptScheduled = "scheduled"
	ApptConfirmed = "confirmed"
	ApptCancelled = "cancelled"
	ApptCompleted = "completed"
)

// Appointment is a clinic tenant's booked slot. Reminder generation only
// reads these; booking lives in the console backend.
type Appointment struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID    uuid.UUID `gorm:"type:uuid;not null;index:idx_appointments_tenant_starts,priority:1"`
	PatientName string
	Phone       string
	StartsAt    time.Time `gorm:"not null;index:idx_appointments_tenant_starts,priority:2"`
	Status      string    `gorm:"not null;default:'scheduled'"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (a *Appointment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
