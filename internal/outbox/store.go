package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound          = errors.New("outbox message not found")
	ErrInvalidTransition = errors.New("invalid outbox status transition")
)

// InsertMode selects how a duplicate (tenant_id, idempotency_key) is handled
// at the storage layer. Both callers treat a duplicate as a counted skip.
type InsertMode int

const (
	// InsertStrict does a plain insert and interprets the unique-constraint
	// violation as "already exists".
	InsertStrict InsertMode = iota
	// InsertIgnore uses ON CONFLICT DO NOTHING and reads rows affected.
	InsertIgnore
)

// transitions maps each status to the statuses an operator action may move it
// to. Retry reopens any terminal state back to queued.
var transitions = map[string][]string{
	StatusQueued:     {StatusProcessing, StatusSent, StatusCancelled},
	StatusProcessing: {StatusSent, StatusFailed, StatusCancelled},
	StatusSent:       {StatusQueued},
	StatusFailed:     {StatusQueued},
	StatusCancelled:  {StatusQueued},
}

func canTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Store struct {
	DB *gorm.DB
}

// Insert performs the idempotent enqueue on the given handle (pass a tx to
// make it part of a larger atomic unit). created=false means a live row with
// the same (tenant, idempotency_key) already exists.
func Insert(db *gorm.DB, m *Message, mode InsertMode) (bool, error) {
	switch mode {
	case InsertIgnore:
		res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(m)
		if res.Error != nil {
			return false, res.Error
		}
		return res.RowsAffected > 0, nil
	default:
		err := db.Create(m).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	}
}

func (s *Store) Enqueue(ctx context.Context, m *Message, mode InsertMode) (bool, error) {
	return Insert(s.DB.WithContext(ctx), m, mode)
}

// Exists reports whether a live row holds the key. Used by dry runs so the
// preview sees the same duplicates a real run would.
func (s *Store) Exists(ctx context.Context, tenantID uuid.UUID, idempotencyKey string) (bool, error) {
	var n int64
	err := s.DB.WithContext(ctx).
		Model(&Message{}).
		Where("tenant_id = ? AND idempotency_key = ?", tenantID, idempotencyKey).
		Count(&n).Error
	return n > 0, err
}

func (s *Store) Get(ctx context.Context, tenantID, id uuid.UUID) (*Message, error) {
	var m Message
	err := s.DB.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) List(ctx context.Context, tenantID uuid.UUID, status string, limit int) ([]Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := s.DB.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []Message
	err := q.Order("created_at desc").Limit(limit).Find(&out).Error
	return out, err
}

// transition moves a message between statuses, validating against the state
// machine. extra columns ride along in the same update.
func (s *Store) transition(ctx context.Context, tenantID, id uuid.UUID, to string, extra map[string]any) (*Message, error) {
	m, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !canTransition(m.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.Status, to)
	}

	updates := map[string]any{"status": to}
	for k, v := range extra {
		updates[k] = v
	}

	// guard on the previous status so two racing operators cannot both win
	res := s.DB.WithContext(ctx).
		Model(&Message{}).
		Where("tenant_id = ? AND id = ? AND status = ?", tenantID, id, m.Status).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: concurrent update", ErrInvalidTransition)
	}
	return s.Get(ctx, tenantID, id)
}

func (s *Store) MarkProcessing(ctx context.Context, tenantID, id uuid.UUID) (*Message, error) {
	return s.transition(ctx, tenantID, id, StatusProcessing, nil)
}

func (s *Store) MarkSent(ctx context.Context, tenantID, id uuid.UUID) (*Message, error) {
	return s.transition(ctx, tenantID, id, StatusSent, nil)
}

func (s *Store) MarkFailed(ctx context.Context, tenantID, id uuid.UUID, errMsg string) (*Message, error) {
	return s.transition(ctx, tenantID, id, StatusFailed, map[string]any{"last_error": errMsg})
}

func (s *Store) Cancel(ctx context.Context, tenantID, id uuid.UUID) (*Message, error) {
	return s.transition(ctx, tenantID, id, StatusCancelled, nil)
}

// Retry reopens a terminal message back to queued and clears the stored error.
func (s *Store) Retry(ctx context.Context, tenantID, id uuid.UUID) (*Message, error) {
	return s.transition(ctx, tenantID, id, StatusQueued, map[string]any{"last_error": ""})
}

// ManualOpen records a manual-channel send attempt (e.g. opening a WhatsApp
// deep link) in meta. It never changes status; the operator confirms delivery
// with an explicit MarkSent.
func (s *Store) ManualOpen(ctx context.Context, tenantID, id uuid.UUID, openedURL string, at time.Time) (*Message, error) {
	m, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if m.Meta == nil {
		m.Meta = map[string]any{}
	}
	m.Meta["manual_send_opened_at"] = at.UTC().Format(time.RFC3339)
	m.Meta["manual_send_url"] = openedURL

	err = s.DB.WithContext(ctx).
		Model(&Message{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Update("meta", m.Meta).Error
	if err != nil {
		return nil, err
	}
	return m, nil
}

// SoftDeleteByKey retires the live row holding an idempotency key, freeing the
// key for a forced re-insert. Reports whether a row was retired.
func (s *Store) SoftDeleteByKey(ctx context.Context, tenantID uuid.UUID, idempotencyKey string) (bool, error) {
	res := s.DB.WithContext(ctx).
		Where("tenant_id = ? AND idempotency_key = ?", tenantID, idempotencyKey).
		Delete(&Message{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
