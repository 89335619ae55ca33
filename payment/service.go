package payment

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/subscripper/subscripper/auth"
	resp "github.com/subscripper/subscripper/response"

	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

// ServiceOptions contains the configuration for Service router
type ServiceOptions struct {
	Auth        *auth.Auth
	Store       BusinessStore
	Provisioner *Provisioner
	Logger      *zap.Logger
}

// Service is the payment onboarding API router
type Service struct {
	ServiceOptions
}

// NewService will create an instance of the payment onboarding API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.Auth == nil {
		return nil, fmt.Errorf("nil Auth is invalid")
	}
	if option.Store == nil {
		return nil, fmt.Errorf("nil Store is invalid")
	}
	if option.Provisioner == nil {
		return nil, fmt.Errorf("nil Provisioner is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		ServiceOptions: option,
	}, nil
}

func (s *Service) writeProvisionError(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	var pErr *ProviderError
	switch {
	case errors.Is(err, ErrBusinessNotFound):
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("You have no registered business"))
	case errors.Is(err, ErrNoAccount):
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Business has not started payment onboarding"))
	case errors.As(err, &pErr):
		resp.WriteError(w, r, resp.ErrPaymentProvider().AddMessages(pErr.Message))
	default:
		logger.Error("Unable to provision connected account",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to set up payouts"))
	}
}

func (s *Service) myBusinessID(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims := r.Context().Value(auth.Context).(*auth.Claims)
	acct, err := s.Store.AccountByOwner(r.Context(), claims.ID)
	if err != nil {
		s.Logger.Error("Unable to lookup business by owner",
			zap.Error(err),
			zap.String("OwnerID", claims.ID),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return "", false
	}
	if acct == nil {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("You have no registered business"))
		return "", false
	}
	return acct.BusinessID, true
}

func (s *Service) startOnboarding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)
	logger := s.Logger.With(zap.String("OwnerID", claims.ID))

	businessID, ok := s.myBusinessID(w, r)
	if !ok {
		return
	}

	state, err := s.Provisioner.EnsureAccount(ctx, businessID)
	if err != nil {
		s.writeProvisionError(w, r, err, logger)
		return
	}

	resp.WriteResponse(w, r, state)
}

func (s *Service) refreshOnboarding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)
	logger := s.Logger.With(zap.String("OwnerID", claims.ID))

	businessID, ok := s.myBusinessID(w, r)
	if !ok {
		return
	}

	state, err := s.Provisioner.RefreshOnboarding(ctx, businessID)
	if err != nil {
		s.writeProvisionError(w, r, err, logger)
		return
	}

	resp.WriteResponse(w, r, state)
}

// Router will return the routes under payment onboarding API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(s.Auth.Middleware())
	r.Use(s.Auth.RoleMiddleware())
	r.Use(s.Auth.RequireRole(auth.RoleBusinessOwner))

	r.Post("/connect", s.startOnboarding)
	r.Post("/connect/refresh", s.refreshOnboarding)

	return r
}
