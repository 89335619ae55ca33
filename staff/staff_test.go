package staff

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"Barista@Example.COM", "barista@example.com"},
		{"  barista@example.com ", "barista@example.com"},
		{"barista@example.com", "barista@example.com"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, NormalizeEmail(tc.in))
	}
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleStaff.Valid())
	assert.True(t, RoleManager.Valid())
	assert.False(t, Role("owner").Valid())
	assert.False(t, Role("").Valid())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(errors.New(`ERROR: duplicate key value violates unique constraint "business_staff_email" (SQLSTATE 23505)`)))
	assert.False(t, isUniqueViolation(errors.New("connection refused")))
	assert.False(t, isUniqueViolation(nil))
}

func TestInvitationAccepted(t *testing.T) {
	inv := &Invitation{}
	assert.False(t, inv.Accepted())
}
