package rentals

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	OccupancyActive = "active"
	OccupancyEnded  = "ended"
)

const (
	DueStatusDue     = "due"
	DueStatusPartial = "partial"
	DueStatusPaid    = "paid"
	DueStatusWaived  = "waived"
)

// Occupancy is one guest occupying one room of a PG tenant.
type Occupancy struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index:idx_occupancies_tenant_status,priority:1"`
	RoomLabel string
	GuestName string
	Phone     string
	// MonthlyRent is in the tenant's minor currency unit. Zero or negative
	// rent means the occupancy is not billed.
	MonthlyRent int64  `gorm:"not null;default:0"`
	Status      string `gorm:"not null;default:'active';index:idx_occupancies_tenant_status,priority:2"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (o *Occupancy) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// Due is one month's rent demand for one occupancy. At most one non-deleted
// row may exist per (tenant, occupancy, period_start); the partial unique
// index in internal/db enforces it.
type Due struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID    uuid.UUID `gorm:"type:uuid;not null;index"`
	OccupancyID uuid.UUID `gorm:"type:uuid;not null"`
	PeriodStart time.Time `gorm:"not null"`
	PeriodEnd   time.Time `gorm:"not null"`
	DueDate     time.Time `gorm:"not null"`
	AmountDue   int64     `gorm:"not null"`
	AmountPaid  int64     `gorm:"not null;default:0"`
	Status      string    `gorm:"not null;default:'due'"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (d *Due) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
