package profile

import (
	"context"
	"errors"
	"strings"

	"github.com/subscripper/subscripper/auth"

	"github.com/google/uuid"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Manager handles the database operations relating to Profiles
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewManager returns a new Manager for profiles
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if err := db.AutoMigrate(&Profile{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initialize profile.Manager")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// New will create a profile for a first-time login
func (m *Manager) New(ctx context.Context, email string, accountType auth.AccountType) (*Profile, error) {
	p := &Profile{
		ID:          uuid.New().String(),
		Email:       strings.ToLower(email),
		AccountType: accountType,
	}
	result := m.db.WithContext(ctx).Create(p)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot create a new Profile")
	}
	return p, nil
}

// GetByID will try to return the profile in the database by id
func (m *Manager) GetByID(ctx context.Context, id string) (*Profile, error) {
	var p Profile

	result := m.db.WithContext(ctx).First(&p, "id = ?", id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get profile by id")
	}

	return &p, nil
}

// GetByEmail will try to return the profile in the database by email address
func (m *Manager) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	var p Profile

	result := m.db.WithContext(ctx).First(&p, "email = ?", strings.ToLower(email))

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get profile by email")
	}

	return &p, nil
}

// Update will persist the mutable fields of the given profile
func (m *Manager) Update(ctx context.Context, p *Profile) error {
	result := m.db.WithContext(ctx).Save(p)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot update profile")
	}
	return nil
}

// SetGatewayCustomerID records the payment gateway customer reference for the profile
func (m *Manager) SetGatewayCustomerID(ctx context.Context, id, customerID string) error {
	result := m.db.WithContext(ctx).Model(&Profile{}).Where("id = ?", id).Update("gateway_customer_id", customerID)
	if result.Error != nil {
		return extErrors.Wrap(result.Error, "Cannot persist gateway customer id")
	}
	return nil
}

// CountByAccountType returns the number of profiles with the given account type
func (m *Manager) CountByAccountType(ctx context.Context, accountType auth.AccountType) (int64, error) {
	var count int64
	result := m.db.WithContext(ctx).Model(&Profile{}).Where("account_type = ?", accountType).Count(&count)
	if result.Error != nil {
		return 0, extErrors.Wrap(result.Error, "Cannot count profiles")
	}
	return count, nil
}
