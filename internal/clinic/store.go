package clinic

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Store struct {
	DB *gorm.DB
}

// Upcoming lists scheduled/confirmed appointments starting within [from, to).
func (s *Store) Upcoming(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	var appts []Appointment
	err := s.DB.WithContext(ctx).
		Where("tenant_id = ? AND status IN ? AND starts_at >= ? AND starts_at < ?",
			tenantID, []string{ApptScheduled, ApptConfirmed}, from, to).
		Order("starts_at asc").
		Find(&appts).Error
	return appts, err
}
