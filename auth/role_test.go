package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanActAs(t *testing.T) {
	cases := []struct {
		account   AccountType
		requested AccountType
		allowed   bool
	}{
		{RoleCustomer, RoleCustomer, true},
		{RoleCustomer, RoleBusinessOwner, false},
		{RoleCustomer, RoleAdmin, false},
		{RoleBusinessOwner, RoleBusinessOwner, true},
		{RoleBusinessOwner, RoleCustomer, true},
		{RoleBusinessOwner, RoleAdmin, false},
		{RoleStaff, RoleCustomer, true},
		{RoleStaff, RoleBusinessOwner, false},
		{RoleAdmin, RoleCustomer, true},
		{RoleAdmin, RoleBusinessOwner, true},
		{RoleAdmin, RoleAdmin, true},
		{RoleCustomer, AccountType("superuser"), false},
		{AccountType(""), RoleCustomer, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.allowed, CanActAs(c.account, c.requested), "%s acting as %s", c.account, c.requested)
	}
}
