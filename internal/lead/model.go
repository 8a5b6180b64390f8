package lead

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrLeadNotFound = errors.New("lead not found")

// Contact is the person behind a lead. Contact CRUD is owned by the console
// backend; dispatch only reads it.
type Contact struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name     string
	Phone    string
	Email    string

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (c *Contact) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Lead is one captured enquiry from a landing page.
type Lead struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID  `gorm:"type:uuid;not null;index"`
	ContactID *uuid.UUID `gorm:"type:uuid"`
	Source    string
	Status    string `gorm:"not null;default:'new'"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (l *Lead) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// contactFor normalizes the lead→contact relation to zero-or-one record.
func contactFor(ctx context.Context, db *gorm.DB, l *Lead) (*Contact, error) {
	if l.ContactID == nil {
		return nil, nil
	}
	var c Contact
	err := db.WithContext(ctx).First(&c, "id = ? AND tenant_id = ?", *l.ContactID, l.TenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
