package redemption

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/subscripper/subscripper/auth"
	"github.com/subscripper/subscripper/business"
	resp "github.com/subscripper/subscripper/response"
	"github.com/subscripper/subscripper/staff"
	"github.com/subscripper/subscripper/subscription"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate *validator.Validate = validator.New()

// ServiceOptions contains the configuration for Service router
type ServiceOptions struct {
	Auth                *auth.Auth
	RedemptionManager   *Manager
	SubscriptionManager *subscription.Manager
	BusinessManager     *business.Manager
	StaffManager        *staff.Manager
	Logger              *zap.Logger
}

// Service is the redemption API router
type Service struct {
	ServiceOptions
}

// NewService will create an instance of the redemption API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.Auth == nil {
		return nil, fmt.Errorf("nil Auth is invalid")
	}
	if option.RedemptionManager == nil {
		return nil, fmt.Errorf("nil RedemptionManager is invalid")
	}
	if option.SubscriptionManager == nil {
		return nil, fmt.Errorf("nil SubscriptionManager is invalid")
	}
	if option.BusinessManager == nil {
		return nil, fmt.Errorf("nil BusinessManager is invalid")
	}
	if option.StaffManager == nil {
		return nil, fmt.Errorf("nil StaffManager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		ServiceOptions: option,
	}, nil
}

// actorBusiness resolves which business the caller redeems on behalf of: a
// business owner acts for their own business, accepted staff act for the
// business that invited them. Writes the error response on failure.
func (s *Service) actorBusiness(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims := r.Context().Value(auth.Context).(*auth.Claims)

	if claims.EffectiveRole == auth.RoleBusinessOwner {
		b, err := s.BusinessManager.GetByOwnerID(r.Context(), claims.ID)
		if err != nil {
			s.Logger.Error("Unable to lookup business by owner",
				zap.Error(err),
				zap.String("OwnerID", claims.ID),
			)
			resp.WriteError(w, r, resp.ErrUnexpected())
			return "", false
		}
		if b == nil {
			resp.WriteError(w, r, resp.ErrNotFound().AddMessages("You have no registered business"))
			return "", false
		}
		return b.ID, true
	}

	membership, err := s.StaffManager.MembershipFor(r.Context(), claims.ID)
	if err != nil {
		s.Logger.Error("Unable to lookup staff membership",
			zap.Error(err),
			zap.String("UserID", claims.ID),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return "", false
	}
	if membership == nil {
		resp.WriteError(w, r, resp.ErrForbidden().AddMessages("You are not on any business's staff"))
		return "", false
	}
	return membership.BusinessID, true
}

// RedeemRequest is the request to consume one unit of allowance
type RedeemRequest struct {
	SubscriptionID string `json:"subscriptionId" validate:"required"`
}

func (s *Service) handleRedeem(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(auth.Context).(*auth.Claims)

	businessID, ok := s.actorBusiness(w, r)
	if !ok {
		return
	}

	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("subscriptionId is required"))
		return
	}

	red, err := s.RedemptionManager.Redeem(r.Context(), RedeemOption{
		SubscriptionID: req.SubscriptionID,
		BusinessID:     businessID,
		StaffID:        claims.ID,
	})
	if err != nil {
		s.writeRedeemError(w, r, err)
		return
	}

	resp.WriteResponse(w, r, red)
}

func (s *Service) writeRedeemError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Subscription not found"))
	case errors.Is(err, ErrNotActive):
		resp.WriteError(w, r, resp.ErrConflict().AddMessages("Subscription is not active"))
	case errors.Is(err, ErrExhausted):
		resp.WriteError(w, r, resp.ErrConflict().AddMessages("No redemptions remaining in the current period"))
	case errors.Is(err, ErrBlackout):
		resp.WriteError(w, r, resp.ErrConflict().AddMessages("Redemptions are not available at this time"))
	default:
		s.Logger.Error("Unable to redeem",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
	}
}

func (s *Service) handleUndo(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(auth.Context).(*auth.Claims)

	businessID, ok := s.actorBusiness(w, r)
	if !ok {
		return
	}

	red, err := s.RedemptionManager.Undo(r.Context(), chi.URLParam(r, "id"), businessID, claims.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("No matching redemption to undo"))
		return
	case err != nil:
		s.Logger.Error("Unable to undo redemption",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, red)
}

func (s *Service) handleListForBusiness(w http.ResponseWriter, r *http.Request) {
	businessID, ok := s.actorBusiness(w, r)
	if !ok {
		return
	}

	reds, err := s.RedemptionManager.ListByBusiness(r.Context(), businessID, 0)
	if err != nil {
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, reds)
}

// handleListForSubscription returns the ledger for one of the caller's own
// subscriptions
func (s *Service) handleListForSubscription(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(auth.Context).(*auth.Claims)
	subID := chi.URLParam(r, "id")

	sub, err := s.SubscriptionManager.GetByID(r.Context(), subID)
	if err != nil {
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}
	if sub == nil || sub.UserID != claims.ID {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Subscription not found"))
		return
	}

	reds, err := s.RedemptionManager.ListBySubscription(r.Context(), subID)
	if err != nil {
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, reds)
}

// Router will return the routes under redemption API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(s.Auth.Middleware())
	r.Use(s.Auth.RoleMiddleware())

	r.Post("/", s.handleRedeem)
	r.Post("/{id}/undo", s.handleUndo)
	r.Get("/business", s.handleListForBusiness)
	r.Get("/subscription/{id}", s.handleListForSubscription)

	return r
}
