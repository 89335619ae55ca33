package staff

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/subscripper/subscripper/auth"
	"github.com/subscripper/subscripper/broker"
	"github.com/subscripper/subscripper/business"
	resp "github.com/subscripper/subscripper/response"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate *validator.Validate = validator.New()

// ServiceOptions contains the configuration for Service router
type ServiceOptions struct {
	Auth            *auth.Auth
	StaffManager    *Manager
	BusinessManager *business.Manager
	// Producer is optional, invitations still work without a broker
	Producer broker.Producer
	Logger   *zap.Logger
}

// Service is the staff invitation API router
type Service struct {
	ServiceOptions
}

// NewService will create an instance of the staff invitation API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.Auth == nil {
		return nil, fmt.Errorf("nil Auth is invalid")
	}
	if option.StaffManager == nil {
		return nil, fmt.Errorf("nil StaffManager is invalid")
	}
	if option.BusinessManager == nil {
		return nil, fmt.Errorf("nil BusinessManager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		ServiceOptions: option,
	}, nil
}

// myBusiness resolves the caller's business or writes the error response
func (s *Service) myBusiness(w http.ResponseWriter, r *http.Request) (*business.Business, bool) {
	claims := r.Context().Value(auth.Context).(*auth.Claims)
	b, err := s.BusinessManager.GetByOwnerID(r.Context(), claims.ID)
	if err != nil {
		s.Logger.Error("Unable to lookup business by owner",
			zap.Error(err),
			zap.String("OwnerID", claims.ID),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return nil, false
	}
	if b == nil {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("You have no registered business"))
		return nil, false
	}
	return b, true
}

// InviteRequest is the request to invite a staff member by email
type InviteRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  Role   `json:"role" validate:"required,oneof=staff manager"`
}

func (s *Service) handleInvite(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(auth.Context).(*auth.Claims)

	b, ok := s.myBusiness(w, r)
	if !ok {
		return
	}

	var req InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("A valid email and a role of staff or manager are required"))
		return
	}

	inv, err := s.StaffManager.Invite(r.Context(), b.ID, req.Email, req.Role, claims.ID)
	switch {
	case errors.Is(err, ErrAlreadyInvited):
		resp.WriteError(w, r, resp.ErrConflict().AddMessages("This email has already been invited"))
		return
	case err != nil:
		s.Logger.Error("Unable to create invitation",
			zap.Error(err),
			zap.String("BusinessID", b.ID),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	s.notifyInvited(b, inv)

	resp.WriteResponse(w, r, inv)
}

// notifyInvited is best-effort, the invitation row already exists
func (s *Service) notifyInvited(b *business.Business, inv *Invitation) {
	if s.Producer == nil {
		return
	}
	if err := s.Producer.SendNotification(&broker.Notification{
		Kind:       broker.KindStaffInvited,
		Email:      inv.Email,
		BusinessID: b.ID,
		Message:    fmt.Sprintf("%s has invited you to join as %s", b.Name, inv.Role),
		OccurredAt: time.Now(),
	}); err != nil {
		s.Logger.Error("Unable to publish staff invitation notification",
			zap.String("InvitationID", inv.ID),
			zap.Error(err),
		)
	}
}

func (s *Service) handleListStaff(w http.ResponseWriter, r *http.Request) {
	b, ok := s.myBusiness(w, r)
	if !ok {
		return
	}

	invs, err := s.StaffManager.ListByBusiness(r.Context(), b.ID)
	if err != nil {
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, invs)
}

func (s *Service) handleRemove(w http.ResponseWriter, r *http.Request) {
	b, ok := s.myBusiness(w, r)
	if !ok {
		return
	}

	err := s.StaffManager.Remove(r.Context(), b.ID, chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, ErrNotFound):
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("No such staff record"))
		return
	case err != nil:
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, true)
}

func (s *Service) handleListMine(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(auth.Context).(*auth.Claims)

	invs, err := s.StaffManager.ListPendingByEmail(r.Context(), claims.Email)
	if err != nil {
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, invs)
}

func (s *Service) handleAccept(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(auth.Context).(*auth.Claims)

	inv, err := s.StaffManager.Accept(r.Context(), chi.URLParam(r, "id"), claims.ID, claims.Email)
	switch {
	case errors.Is(err, ErrNotFound):
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("No pending invitation found"))
		return
	case err != nil:
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, inv)
}

func (s *Service) handleDecline(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(auth.Context).(*auth.Claims)

	err := s.StaffManager.Decline(r.Context(), chi.URLParam(r, "id"), claims.Email)
	switch {
	case errors.Is(err, ErrNotFound):
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("No pending invitation found"))
		return
	case err != nil:
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, true)
}

// Router will return the routes under staff API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(s.Auth.Middleware())
	r.Use(s.Auth.RoleMiddleware())

	// invitee's side, any signed-in user can hold invitations
	r.Get("/invitations/mine", s.handleListMine)
	r.Post("/invitations/{id}/accept", s.handleAccept)
	r.Post("/invitations/{id}/decline", s.handleDecline)

	// business owner's side
	r.Group(func(r chi.Router) {
		r.Use(s.Auth.RequireRole(auth.RoleBusinessOwner))
		r.Post("/invitations", s.handleInvite)
		r.Get("/invitations", s.handleListStaff)
		r.Delete("/invitations/{id}", s.handleRemove)
	})

	return r
}
