package business

import (
	"context"
	"errors"
	"strings"
	"time"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrOwnerHasBusiness signals that the owner already registered a business
var ErrOwnerHasBusiness = errors.New("owner already has a business")

// ErrNotFound signals that no business matches the given id
var ErrNotFound = errors.New("business not found")

// Manager handles the database operations relating to Businesses
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewManager returns a new Manager for businesses
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if err := db.AutoMigrate(&Business{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initialize business.Manager")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// Create will register a new business in pending_approval status
func (m *Manager) Create(ctx context.Context, b *Business) error {
	b.Status = StatusPendingApproval
	result := m.db.WithContext(ctx).Create(b)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return ErrOwnerHasBusiness
		}
		m.logger.Error("Unable to create new business in database",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot create business")
	}
	return nil
}

// GetByID will try to return the business in the database by id
func (m *Manager) GetByID(ctx context.Context, id string) (*Business, error) {
	var b Business

	result := m.db.WithContext(ctx).First(&b, "id = ?", id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get business by id")
	}

	return &b, nil
}

// GetByOwnerID will try to return the business owned by the given profile
func (m *Manager) GetByOwnerID(ctx context.Context, ownerID string) (*Business, error) {
	var b Business

	result := m.db.WithContext(ctx).First(&b, "owner_id = ?", ownerID)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get business by owner id")
	}

	return &b, nil
}

// ListOption customizes the business listing
type ListOption struct {
	Status Status
	Before time.Time
	Limit  int
}

// List returns businesses ordered by creation time, optionally filtered by status
func (m *Manager) List(ctx context.Context, opt ListOption) ([]Business, error) {
	baseQuery := m.db.WithContext(ctx).Order("created_at desc")
	if len(opt.Status) > 0 {
		baseQuery = baseQuery.Where("status = ?", opt.Status)
	}
	if opt.Limit > 0 {
		baseQuery = baseQuery.Limit(opt.Limit)
	}
	if !opt.Before.IsZero() {
		baseQuery = baseQuery.Where("created_at < ?", opt.Before)
	}

	results := make([]Business, 0, 1)
	result := baseQuery.Find(&results)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, result.Error
	}
	return results, nil
}

// Update will persist the mutable fields of the given business
func (m *Manager) Update(ctx context.Context, b *Business) error {
	result := m.db.WithContext(ctx).Save(b)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot update business")
	}
	return nil
}

func (m *Manager) setStatus(ctx context.Context, id string, updates map[string]interface{}) error {
	result := m.db.WithContext(ctx).Model(&Business{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return extErrors.Wrap(result.Error, "Cannot update business status")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Approve moves a pending business into approved status
func (m *Manager) Approve(ctx context.Context, id string) error {
	now := time.Now()
	return m.setStatus(ctx, id, map[string]interface{}{
		"status":           StatusApproved,
		"approved_at":      &now,
		"rejection_reason": "",
	})
}

// Reject declines a pending business with a reason shown to the owner
func (m *Manager) Reject(ctx context.Context, id, reason string) error {
	return m.setStatus(ctx, id, map[string]interface{}{
		"status":           StatusRejected,
		"rejection_reason": reason,
	})
}

// Suspend takes an operating business off the marketplace
func (m *Manager) Suspend(ctx context.Context, id string) error {
	return m.setStatus(ctx, id, map[string]interface{}{
		"status": StatusSuspended,
	})
}

// Activate restores a suspended or approved business to active status
func (m *Manager) Activate(ctx context.Context, id string) error {
	return m.setStatus(ctx, id, map[string]interface{}{
		"status": StatusActive,
	})
}

// SetPaymentAccount records the connected account reference for the business.
// Persisted before any onboarding link leaves the API, an unsaved account id
// is unrecoverable.
func (m *Manager) SetPaymentAccount(ctx context.Context, id, accountID string) error {
	return m.setStatus(ctx, id, map[string]interface{}{
		"payment_account_id": accountID,
	})
}

// MarkOnboardingComplete flags the business as able to receive payouts
func (m *Manager) MarkOnboardingComplete(ctx context.Context, id string) error {
	return m.setStatus(ctx, id, map[string]interface{}{
		"payment_onboarding_complete": true,
	})
}

// Counts summarizes businesses for the admin dashboard
type Counts struct {
	Total            int64 `json:"total"`
	PendingApprovals int64 `json:"pendingApprovals"`
	Active           int64 `json:"active"`
}

// CountByStatus returns aggregate business counts
func (m *Manager) CountByStatus(ctx context.Context) (*Counts, error) {
	var c Counts
	if result := m.db.WithContext(ctx).Model(&Business{}).Count(&c.Total); result.Error != nil {
		return nil, extErrors.Wrap(result.Error, "Cannot count businesses")
	}
	if result := m.db.WithContext(ctx).Model(&Business{}).Where("status = ?", StatusPendingApproval).Count(&c.PendingApprovals); result.Error != nil {
		return nil, extErrors.Wrap(result.Error, "Cannot count businesses")
	}
	if result := m.db.WithContext(ctx).Model(&Business{}).Where("status = ?", StatusActive).Count(&c.Active); result.Error != nil {
		return nil, extErrors.Wrap(result.Error, "Cannot count businesses")
	}
	return &c, nil
}

// isUniqueViolation reports whether the error is a Postgres unique constraint
// violation (SQLSTATE 23505)
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
