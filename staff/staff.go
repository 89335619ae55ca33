package staff

import (
	"strings"
	"time"
)

// Role is the position an invitation grants within a business
type Role string

const (
	RoleStaff   Role = "staff"
	RoleManager Role = "manager"
)

// Valid checks if the Role is a recognized value
func (r Role) Valid() bool {
	switch r {
	case RoleStaff, RoleManager:
		return true
	}
	return false
}

// Invitation is a business's offer of a staff position, keyed by email so
// it can be issued before the invitee has ever signed in. Accepting stamps
// UserID and AcceptedAt; declining or removing deletes the row outright.
type Invitation struct {
	ID         string     `json:"id" gorm:"primaryKey"`
	BusinessID string     `json:"businessId" gorm:"uniqueIndex:business_staff_email"`
	Email      string     `json:"email" gorm:"uniqueIndex:business_staff_email"`
	Role       Role       `json:"role"`
	InvitedBy  string     `json:"invitedBy"`
	UserID     string     `json:"userId,omitempty"`
	AcceptedAt *time.Time `json:"acceptedAt,omitempty"`
	CreatedAt  time.Time  `json:"invitedAt"`
	UpdatedAt  time.Time  `json:"-"`
}

// Accepted reports whether the invitee has claimed the invitation
func (i *Invitation) Accepted() bool {
	return i.AcceptedAt != nil
}

// NormalizeEmail lowercases and trims an email so the per-business
// uniqueness constraint cannot be sidestepped by case or whitespace
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
