package auth

import (
	"context"
	"net/http"

	resp "github.com/subscripper/subscripper/response"
)

// AccountType is the underlying type of an account
type AccountType string

// Defining the valid account types
const (
	RoleCustomer      AccountType = "customer"
	RoleBusinessOwner AccountType = "business_owner"
	RoleStaff         AccountType = "staff"
	RoleAdmin         AccountType = "admin"
)

// EffectiveRoleHeader lets a client act with a lesser role than its account type
// (e.g. a business owner browsing as a customer). Escalation is never allowed.
const EffectiveRoleHeader = "X-Effective-Role"

func validRole(r AccountType) bool {
	switch r {
	case RoleCustomer, RoleBusinessOwner, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// CanActAs reports whether an account of the given type may assume the requested role
func CanActAs(account, requested AccountType) bool {
	if !validRole(account) || !validRole(requested) {
		return false
	}
	if account == requested {
		return true
	}
	switch account {
	case RoleAdmin:
		return true
	case RoleBusinessOwner, RoleStaff:
		return requested == RoleCustomer
	default:
		return false
	}
}

// RoleMiddleware resolves the effective role for the request and stores it on the
// Claims. Must be mounted after Middleware.
func (a *Auth) RoleMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := r.Context().Value(Context).(*Claims)
			if !ok {
				resp.WriteError(w, r, resp.ErrUnauthorized())
				return
			}
			requested := AccountType(r.Header.Get(EffectiveRoleHeader))
			if requested == "" {
				requested = claims.AccountType
			}
			if !CanActAs(claims.AccountType, requested) {
				resp.WriteError(w, r, resp.ErrForbidden().AddMessages("Cannot act with the requested role"))
				return
			}
			resolved := *claims
			resolved.EffectiveRole = requested
			ctx := context.WithValue(r.Context(), Context, &resolved)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole guards a route subtree to a single effective role
func (a *Auth) RequireRole(role AccountType) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := r.Context().Value(Context).(*Claims)
			if !ok || claims.EffectiveRole != role {
				resp.WriteError(w, r, resp.ErrForbidden())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
