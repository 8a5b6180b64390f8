package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("tenant not found")

type Store struct {
	DB *gorm.DB
}

// Eligible pairs an active tenant with its enabled rule for one job.
type Eligible struct {
	Tenant Tenant
	Rule   AutomationRule
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	var t Tenant
	if err := s.DB.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Eligible returns every tenant that should be processed for a job: rule
// enabled, tenant present and active, feature flag on. A fetch error for one
// tenant is collected and the loop continues; it never aborts the fan-out.
func (s *Store) Eligible(ctx context.Context, job, featureKey string) ([]Eligible, []string, error) {
	var rules []AutomationRule
	if err := s.DB.WithContext(ctx).
		Where("job = ? AND enabled = ?", job, true).
		Order("id asc").
		Find(&rules).Error; err != nil {
		return nil, nil, err
	}

	var out []Eligible
	var errs []string

	for _, rule := range rules {
		var t Tenant
		err := s.DB.WithContext(ctx).First(&t, "id = ?", rule.TenantID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// soft-deleted or gone
				continue
			}
			errs = append(errs, fmt.Sprintf("tenant %s: fetch failed: %v", rule.TenantID, err))
			continue
		}
		if t.Status != StatusActive {
			continue
		}

		on, err := s.featureEnabled(ctx, t.ID, featureKey)
		if err != nil {
			errs = append(errs, fmt.Sprintf("tenant %s: feature lookup failed: %v", t.ID, err))
			continue
		}
		if !on {
			continue
		}

		out = append(out, Eligible{Tenant: t, Rule: rule})
	}

	return out, errs, nil
}

func (s *Store) featureEnabled(ctx context.Context, tenantID uuid.UUID, key string) (bool, error) {
	var f FeatureFlag
	err := s.DB.WithContext(ctx).
		Where("tenant_id = ? AND key = ?", tenantID, key).
		First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return f.Enabled, nil
}

// FindTemplate returns the tenant's active template for key+channel, or nil
// when none exists so the caller can fall back to its built-in default.
func (s *Store) FindTemplate(ctx context.Context, tenantID uuid.UUID, key, channel string) (*MessageTemplate, error) {
	var m MessageTemplate
	err := s.DB.WithContext(ctx).
		Where("tenant_id = ? AND key = ? AND channel = ? AND active = ?", tenantID, key, channel, true).
		Order("updated_at desc").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// TouchLastRun stamps the rule after a real (non-dry) run.
func (s *Store) TouchLastRun(ctx context.Context, ruleID uint64, at time.Time) error {
	return s.DB.WithContext(ctx).
		Model(&AutomationRule{}).
		Where("id = ?", ruleID).
		Update("last_run_at", at).Error
}
