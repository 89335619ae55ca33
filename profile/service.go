package profile

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/subscripper/subscripper/auth"
	resp "github.com/subscripper/subscripper/response"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate *validator.Validate = validator.New()

// Options contains the configuration for Service router
type Options struct {
	Auth           *auth.Auth
	ProfileManager *Manager
	Logger         *zap.Logger
}

// Service is the profile API router
type Service struct {
	Options
}

// NewService will create an instance of the profile API router
func NewService(option Options) (*Service, error) {
	if option.Auth == nil {
		return nil, fmt.Errorf("nil Auth is invalid")
	}
	if option.ProfileManager == nil {
		return nil, fmt.Errorf("nil ProfileManager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		Options: option,
	}, nil
}

// LoginRequest is the model of user request for a login token.
// AccountType only applies on first login; admin cannot be self-assigned.
type LoginRequest struct {
	Email       string `json:"email" validate:"required,email"`
	AccountType string `json:"accountType" validate:"omitempty,oneof=customer business_owner"`
}

func (s *Service) requestLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	logger := s.Logger.With(zap.String("Email", req.Email))

	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages(err.Error()))
		return
	}

	if err := s.Auth.Request(r.Context(), req.Email, req.Email); err != nil {
		logger.Error("Unable to send login token",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to send login email"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	email := chi.URLParam(r, "uid")
	token := chi.URLParam(r, "token")
	accountType := auth.AccountType(r.URL.Query().Get("accountType"))

	logger := s.Logger.With(zap.String("Email", email))

	valid, err := s.Auth.Verify(ctx, email, token)
	if err != nil {
		logger.Error("Unable to verify login token",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrVerifyToken())
		return
	}

	if !valid {
		resp.WriteError(w, r, resp.ErrUnauthorized().AddMessages("Invalid login token"))
		return
	}

	// "upsert" a profile
	prof, err := s.ProfileManager.GetByEmail(ctx, email)
	if err != nil {
		logger.Error("Unable to lookup Profile",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	if prof == nil {
		if accountType != auth.RoleCustomer && accountType != auth.RoleBusinessOwner {
			accountType = auth.RoleCustomer
		}
		prof, err = s.ProfileManager.New(ctx, email, accountType)
		if err != nil {
			logger.Error("Unable to create Profile",
				zap.Error(err),
			)
			resp.WriteError(w, r, resp.ErrUnexpected())
			return
		}
	}

	jwtToken, err := s.Auth.CreateTokenFromClaims(auth.Claims{
		ID:          prof.ID,
		Email:       prof.Email,
		AccountType: prof.AccountType,
	})
	if err != nil {
		logger.Error("Unable to generate token",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, struct {
		Token   string   `json:"token"`
		Profile *Profile `json:"profile"`
	}{
		Token:   jwtToken,
		Profile: prof,
	})
}

func (s *Service) getMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	prof, err := s.ProfileManager.GetByID(ctx, claims.ID)
	if err != nil {
		s.Logger.Error("Unable to query profile",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}
	if prof == nil {
		resp.WriteError(w, r, resp.ErrNotFound())
		return
	}

	resp.WriteResponse(w, r, prof)
}

// UpdateRequest is the model for profile self-service updates
type UpdateRequest struct {
	Name  string `json:"name" validate:"omitempty,max=120"`
	Phone string `json:"phone" validate:"omitempty,max=32"`
}

func (s *Service) updateMe(w http.ResponseWriter, r *http.Request) {
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

	prof, err := s.ProfileManager.GetByID(ctx, claims.ID)
	if err != nil {
		s.Logger.Error("Unable to query profile",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}
	if prof == nil {
		resp.WriteError(w, r, resp.ErrNotFound())
		return
	}

	if req.Name != "" {
		prof.Name = req.Name
	}
	if req.Phone != "" {
		prof.Phone = req.Phone
	}

	if err := s.ProfileManager.Update(ctx, prof); err != nil {
		s.Logger.Error("Unable to update profile",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to update profile"))
		return
	}

	resp.WriteResponse(w, r, prof)
}

// Router will return the routes under profile API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/login", s.requestLogin)
	r.Get("/login/{uid}/{token}", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.Auth.Middleware())
		r.Use(s.Auth.RoleMiddleware())
		r.Get("/me", s.getMe)
		r.Patch("/me", s.updateMe)
	})

	return r
}
