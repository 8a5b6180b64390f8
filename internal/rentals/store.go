package rentals

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	DB *gorm.DB
}

func (s *Store) ActiveOccupancies(ctx context.Context, tenantID uuid.UUID) ([]Occupancy, error) {
	var occs []Occupancy
	err := s.DB.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, OccupancyActive).
		Order("created_at asc").
		Find(&occs).Error
	return occs, err
}

// InsertDue is an atomic create-or-skip keyed by the partial unique index on
// (tenant_id, occupancy_id, period_start). It reports created=false when a
// live due already exists for the period; callers count that as a skip.
// Takes the caller's handle so it can run inside the due+outbox transaction.
func InsertDue(db *gorm.DB, due *Due) (bool, error) {
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(due)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DueExists is the read-side twin of InsertDue, used by dry runs.
func (s *Store) DueExists(ctx context.Context, tenantID, occupancyID uuid.UUID, periodStart time.Time) (bool, error) {
	var n int64
	err := s.DB.WithContext(ctx).
		Model(&Due{}).
		Where("tenant_id = ? AND occupancy_id = ? AND period_start = ?", tenantID, occupancyID, periodStart).
		Count(&n).Error
	return n > 0, err
}
