package staff

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrAlreadyInvited is returned when the business already holds an
	// invitation for the email
	ErrAlreadyInvited = errors.New("this email has already been invited")
	// ErrNotFound is returned when no matching invitation exists
	ErrNotFound = errors.New("invitation not found")
	// ErrInvalidRole is returned when the role is not a recognized value
	ErrInvalidRole = errors.New("role must be staff or manager")
)

// Manager handles the database operations for staff invitations
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewManager returns a new Manager for staff invitations
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if err := db.AutoMigrate(&Invitation{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initialize staff.Manager")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// Invite creates an unaccepted invitation. The (business, email) pair is
// unique in the store; a second invite for the same pair returns
// ErrAlreadyInvited regardless of whether the first was accepted yet.
func (m *Manager) Invite(ctx context.Context, businessID, email string, role Role, invitedBy string) (*Invitation, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	inv := &Invitation{
		ID:         uuid.New().String(),
		BusinessID: businessID,
		Email:      NormalizeEmail(email),
		Role:       role,
		InvitedBy:  invitedBy,
	}
	result := m.db.WithContext(ctx).Create(inv)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return nil, ErrAlreadyInvited
		}
		m.logger.Error("Unable to create invitation in database",
			zap.String("BusinessID", businessID),
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot create invitation")
	}
	return inv, nil
}

// Accept stamps the invitation with the claiming user. The invitee's email
// must match; a missing or already-accepted invitation is ErrNotFound.
func (m *Manager) Accept(ctx context.Context, invitationID, userID, userEmail string) (*Invitation, error) {
	inv := Invitation{}
	result := m.db.WithContext(ctx).
		Where("id = ? AND email = ? AND accepted_at IS NULL", invitationID, NormalizeEmail(userEmail)).
		First(&inv)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get invitation")
	}

	now := time.Now()
	inv.UserID = userID
	inv.AcceptedAt = &now
	if saveRes := m.db.WithContext(ctx).Save(&inv); saveRes.Error != nil {
		m.logger.Error("Unable to accept invitation",
			zap.String("InvitationID", invitationID),
			zap.Error(saveRes.Error),
		)
		return nil, extErrors.Wrap(saveRes.Error, "Cannot accept invitation")
	}
	return &inv, nil
}

// Decline deletes a pending invitation addressed to the given email
func (m *Manager) Decline(ctx context.Context, invitationID, userEmail string) error {
	result := m.db.WithContext(ctx).
		Where("id = ? AND email = ? AND accepted_at IS NULL", invitationID, NormalizeEmail(userEmail)).
		Delete(&Invitation{})
	if result.Error != nil {
		m.logger.Error("Unable to decline invitation",
			zap.String("InvitationID", invitationID),
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot decline invitation")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Remove deletes a staff record from a business, accepted or not. Removal
// is a hard delete so the same email can be invited again later.
func (m *Manager) Remove(ctx context.Context, businessID, invitationID string) error {
	result := m.db.WithContext(ctx).
		Where("id = ? AND business_id = ?", invitationID, businessID).
		Delete(&Invitation{})
	if result.Error != nil {
		m.logger.Error("Unable to remove staff record",
			zap.String("InvitationID", invitationID),
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot remove staff record")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByBusiness returns all staff records for a business, pending and
// accepted, newest first
func (m *Manager) ListByBusiness(ctx context.Context, businessID string) ([]Invitation, error) {
	results := make([]Invitation, 0, 1)
	result := m.db.WithContext(ctx).
		Order("created_at desc").
		Find(&results, "business_id = ?", businessID)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, result.Error
	}
	return results, nil
}

// ListPendingByEmail returns the unaccepted invitations addressed to an
// email, so the consuming application can route the user to resolve them
func (m *Manager) ListPendingByEmail(ctx context.Context, email string) ([]Invitation, error) {
	results := make([]Invitation, 0, 1)
	result := m.db.WithContext(ctx).
		Order("created_at desc").
		Find(&results, "email = ? AND accepted_at IS NULL", NormalizeEmail(email))
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, result.Error
	}
	return results, nil
}

// MembershipFor returns the accepted staff record for a user, or (nil, nil)
// when the user is not on any business's staff
func (m *Manager) MembershipFor(ctx context.Context, userID string) (*Invitation, error) {
	inv := Invitation{}
	result := m.db.WithContext(ctx).
		Where("user_id = ? AND accepted_at IS NOT NULL", userID).
		First(&inv)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get staff membership")
	}
	return &inv, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
