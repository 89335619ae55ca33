package subscription

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/subscripper/subscripper/auth"
	"github.com/subscripper/subscripper/payment"
	resp "github.com/subscripper/subscripper/response"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate *validator.Validate = validator.New()

// ServiceOptions contains the configuration for Service router
type ServiceOptions struct {
	Auth                *auth.Auth
	SubscriptionManager *Manager
	Logger              *zap.Logger
}

// Service is the subscription API router
type Service struct {
	ServiceOptions
}

// NewService will create an instance of the subscription API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.Auth == nil {
		return nil, fmt.Errorf("nil Auth is invalid")
	}
	if option.SubscriptionManager == nil {
		return nil, fmt.Errorf("nil SubscriptionManager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		ServiceOptions: option,
	}, nil
}

// SubscribeRequest is the request to start a subscription
type SubscribeRequest struct {
	ProductID string `json:"productId" validate:"required"`
}

func (s *Service) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(auth.Context).(*auth.Claims)

	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("productId is required"))
		return
	}

	result, err := s.SubscriptionManager.Subscribe(r.Context(), SubscribeOption{
		UserID:    claims.ID,
		ProductID: req.ProductID,
	})
	if err != nil {
		s.writeSubscribeError(w, r, err)
		return
	}

	resp.WriteResponse(w, r, result)
}

func (s *Service) writeSubscribeError(w http.ResponseWriter, r *http.Request, err error) {
	var provider *payment.ProviderError
	switch {
	case errors.Is(err, ErrProductUnavailable):
		resp.WriteError(w, r, resp.ErrGone().AddMessages("Product is not available for subscription"))
	case errors.Is(err, ErrBusinessNotSellable):
		resp.WriteError(w, r, resp.ErrConflict().AddMessages("Business is not ready to accept payments"))
	case errors.Is(err, ErrAlreadySubscribed):
		resp.WriteError(w, r, resp.ErrConflict().AddMessages("You already have an ongoing subscription to this product"))
	case errors.As(err, &provider):
		resp.WriteError(w, r, resp.ErrPaymentProvider().AddMessages(provider.Message))
	default:
		s.Logger.Error("Unable to create subscription",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
	}
}

func (s *Service) handleList(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(auth.Context).(*auth.Claims)
	all := r.URL.Query().Get("all") == "true"

	subs, err := s.SubscriptionManager.List(r.Context(), claims.ID, all)
	if err != nil {
		s.Logger.Error("Unable to list subscriptions",
			zap.Error(err),
			zap.String("UserID", claims.ID),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, subs)
}

// ownedSubscription resolves the subscription in the URL and checks it
// belongs to the caller
func (s *Service) ownedSubscription(w http.ResponseWriter, r *http.Request) (*Subscription, bool) {
	claims := r.Context().Value(auth.Context).(*auth.Claims)
	subID := chi.URLParam(r, "id")

	sub, err := s.SubscriptionManager.GetByID(r.Context(), subID)
	if err != nil {
		s.Logger.Error("Unable to lookup subscription",
			zap.Error(err),
			zap.String("SubscriptionID", subID),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return nil, false
	}
	if sub == nil || sub.UserID != claims.ID {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Subscription not found"))
		return nil, false
	}
	return sub, true
}

func (s *Service) handleGet(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.ownedSubscription(w, r)
	if !ok {
		return
	}
	resp.WriteResponse(w, r, sub)
}

// CancelRequest optionally records why the customer cancelled
type CancelRequest struct {
	Reason string `json:"reason"`
}

func (s *Service) handleCancel(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(auth.Context).(*auth.Claims)
	subID := chi.URLParam(r, "id")

	var req CancelRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			resp.WriteError(w, r, resp.ErrInvalidJson())
			return
		}
	}

	sub, err := s.SubscriptionManager.Cancel(r.Context(), subID, claims.ID, req.Reason)
	switch {
	case errors.Is(err, ErrNotFound):
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Subscription not found"))
		return
	case errors.Is(err, ErrNotCancellable):
		resp.WriteError(w, r, resp.ErrConflict().AddMessages("Subscription is already in a terminal state"))
		return
	case err != nil:
		s.Logger.Error("Unable to cancel subscription",
			zap.Error(err),
			zap.String("SubscriptionID", subID),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, sub)
}

// Router will return the routes under subscription API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(s.Auth.Middleware())
	r.Use(s.Auth.RoleMiddleware())

	r.Post("/", s.handleSubscribe)
	r.Get("/", s.handleList)
	r.Get("/{id}", s.handleGet)
	r.Post("/{id}/cancel", s.handleCancel)

	return r
}
