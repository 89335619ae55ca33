package business

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/subscripper/subscripper/auth"
	"github.com/subscripper/subscripper/profile"
	resp "github.com/subscripper/subscripper/response"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var validate *validator.Validate = validator.New()

// ServiceOptions contains the configuration for Service router
type ServiceOptions struct {
	Auth            *auth.Auth
	BusinessManager *Manager
	ProfileManager  *profile.Manager
	Logger          *zap.Logger
}

// Service is the business API router
type Service struct {
	ServiceOptions
}

// NewService will create an instance of the business API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.Auth == nil {
		return nil, fmt.Errorf("nil Auth is invalid")
	}
	if option.BusinessManager == nil {
		return nil, fmt.Errorf("nil BusinessManager is invalid")
	}
	if option.ProfileManager == nil {
		return nil, fmt.Errorf("nil ProfileManager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		ServiceOptions: option,
	}, nil
}

// CreateRequest is the model for registering a business
type CreateRequest struct {
	Name         string `json:"name" validate:"required,max=120"`
	Type         string `json:"type" validate:"required,max=64"`
	Description  string `json:"description" validate:"omitempty,max=2000"`
	Address      string `json:"address" validate:"omitempty,max=300"`
	City         string `json:"city" validate:"omitempty,max=120"`
	Postcode     string `json:"postcode" validate:"omitempty,max=16"`
	Email        string `json:"email" validate:"omitempty,email"`
	Phone        string `json:"phone" validate:"omitempty,max=32"`
	Website      string `json:"website" validate:"omitempty,url"`
	Timezone     string `json:"timezone" validate:"omitempty,timezone"`
	OpeningHours Hours  `json:"openingHours"`
}

func (s *Service) createBusiness(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	logger := s.Logger.With(zap.String("OwnerID", claims.ID))

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages(err.Error()))
		return
	}

	b := Business{
		ID:           uuid.New().String(),
		OwnerID:      claims.ID,
		Name:         req.Name,
		Type:         req.Type,
		Description:  req.Description,
		Address:      req.Address,
		City:         req.City,
		Postcode:     req.Postcode,
		Email:        req.Email,
		Phone:        req.Phone,
		Website:      req.Website,
		Timezone:     req.Timezone,
		OpeningHours: req.OpeningHours,
	}

	if err := s.BusinessManager.Create(ctx, &b); err != nil {
		if errors.Is(err, ErrOwnerHasBusiness) {
			resp.WriteError(w, r, resp.ErrConflict().AddMessages("You already have a registered business"))
			return
		}
		logger.Error("Unable to create business",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to register business"))
		return
	}

	resp.WriteResponse(w, r, b)
}

func (s *Service) getMyBusiness(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	b, err := s.BusinessManager.GetByOwnerID(ctx, claims.ID)
	if err != nil {
		s.Logger.Error("Unable to query business by owner",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}
	if b == nil {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("You have no registered business"))
		return
	}

	resp.WriteResponse(w, r, b)
}

// UpdateRequest is the model for owner edits; administrative fields are not editable here
type UpdateRequest struct {
	Name         string `json:"name" validate:"omitempty,max=120"`
	Description  string `json:"description" validate:"omitempty,max=2000"`
	Address      string `json:"address" validate:"omitempty,max=300"`
	City         string `json:"city" validate:"omitempty,max=120"`
	Postcode     string `json:"postcode" validate:"omitempty,max=16"`
	Email        string `json:"email" validate:"omitempty,email"`
	Phone        string `json:"phone" validate:"omitempty,max=32"`
	Website      string `json:"website" validate:"omitempty,url"`
	LogoURL      string `json:"logoUrl" validate:"omitempty,url"`
	Timezone     string `json:"timezone" validate:"omitempty,timezone"`
	OpeningHours Hours  `json:"openingHours"`
}

func (s *Service) updateMyBusiness(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages(err.Error()))
		return
	}

	b, err := s.BusinessManager.GetByOwnerID(ctx, claims.ID)
	if err != nil {
		s.Logger.Error("Unable to query business by owner",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}
	if b == nil {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("You have no registered business"))
		return
	}

	if req.Name != "" {
		b.Name = req.Name
	}
	if req.Description != "" {
		b.Description = req.Description
	}
	if req.Address != "" {
		b.Address = req.Address
	}
	if req.City != "" {
		b.City = req.City
	}
	if req.Postcode != "" {
		b.Postcode = req.Postcode
	}
	if req.Email != "" {
		b.Email = req.Email
	}
	if req.Phone != "" {
		b.Phone = req.Phone
	}
	if req.Website != "" {
		b.Website = req.Website
	}
	if req.LogoURL != "" {
		b.LogoURL = req.LogoURL
	}
	if req.Timezone != "" {
		b.Timezone = req.Timezone
	}
	if req.OpeningHours != nil {
		b.OpeningHours = req.OpeningHours
	}

	if err := s.BusinessManager.Update(ctx, b); err != nil {
		s.Logger.Error("Unable to update business",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to update business"))
		return
	}

	resp.WriteResponse(w, r, b)
}

func (s *Service) getBusiness(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	businessID := chi.URLParam(r, "id")

	b, err := s.BusinessManager.GetByID(ctx, businessID)
	if err != nil {
		s.Logger.Error("Unable to query business",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}
	if b == nil {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find business with specified ID"))
		return
	}

	resp.WriteResponse(w, r, b)
}

func (s *Service) listBusinesses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	before := r.URL.Query().Get("before")
	status := Status(r.URL.Query().Get("status"))

	var parsedTime time.Time
	if before != "" {
		var err error
		parsedTime, err = time.Parse(time.RFC3339Nano, before)
		if err != nil {
			resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid before param"))
			return
		}
	}

	results, err := s.BusinessManager.List(ctx, ListOption{
		Status: status,
		Before: parsedTime,
		Limit:  50,
	})
	if err != nil {
		s.Logger.Error("Unable to list businesses",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, results)
}

// RejectRequest carries the reason shown to a rejected business owner
type RejectRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (s *Service) adminTransition(action func(ctx context.Context, id string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		businessID := chi.URLParam(r, "id")

		if err := action(ctx, businessID); err != nil {
			if errors.Is(err, ErrNotFound) {
				resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find business with specified ID"))
				return
			}
			s.Logger.Error("Unable to update business status",
				zap.Error(err),
				zap.String("BusinessID", businessID),
			)
			resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to update business status"))
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Service) rejectBusiness(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	businessID := chi.URLParam(r, "id")

	var req RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages(err.Error()))
		return
	}

	if err := s.BusinessManager.Reject(ctx, businessID, req.Reason); err != nil {
		if errors.Is(err, ErrNotFound) {
			resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find business with specified ID"))
			return
		}
		s.Logger.Error("Unable to reject business",
			zap.Error(err),
			zap.String("BusinessID", businessID),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to reject business"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Stats is the admin dashboard summary
type Stats struct {
	TotalBusinesses  int64 `json:"totalBusinesses"`
	TotalCustomers   int64 `json:"totalCustomers"`
	PendingApprovals int64 `json:"pendingApprovals"`
	ActiveBusinesses int64 `json:"activeBusinesses"`
}

func (s *Service) adminStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	counts, err := s.BusinessManager.CountByStatus(ctx)
	if err != nil {
		s.Logger.Error("Unable to count businesses",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}
	customers, err := s.ProfileManager.CountByAccountType(ctx, auth.RoleCustomer)
	if err != nil {
		s.Logger.Error("Unable to count customers",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, Stats{
		TotalBusinesses:  counts.Total,
		TotalCustomers:   customers,
		PendingApprovals: counts.PendingApprovals,
		ActiveBusinesses: counts.Active,
	})
}

// Router will return the routes under business API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(s.Auth.Middleware())
	r.Use(s.Auth.RoleMiddleware())

	r.Get("/{id}", s.getBusiness)

	r.Group(func(r chi.Router) {
		r.Use(s.Auth.RequireRole(auth.RoleBusinessOwner))
		r.Post("/", s.createBusiness)
		r.Get("/mine", s.getMyBusiness)
		r.Patch("/mine", s.updateMyBusiness)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.Auth.RequireRole(auth.RoleAdmin))
		r.Get("/", s.listBusinesses)
		r.Get("/stats", s.adminStats)
		r.Post("/{id}/approve", s.adminTransition(s.BusinessManager.Approve))
		r.Post("/{id}/reject", s.rejectBusiness)
		r.Post("/{id}/suspend", s.adminTransition(s.BusinessManager.Suspend))
		r.Post("/{id}/activate", s.adminTransition(s.BusinessManager.Activate))
	})

	return r
}
