package product

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/subscripper/subscripper/auth"
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
	ProductManager  *Manager
	BusinessManager *business.Manager
	Logger          *zap.Logger
}

// Service is the product API router
type Service struct {
	ServiceOptions
}

// NewService will create an instance of the product API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.Auth == nil {
		return nil, fmt.Errorf("nil Auth is invalid")
	}
	if option.ProductManager == nil {
		return nil, fmt.Errorf("nil ProductManager is invalid")
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

// CreateRequest is the model for creating a subscription product
type CreateRequest struct {
	Name              string        `json:"name" validate:"required,max=120"`
	Description       string        `json:"description" validate:"omitempty,max=2000"`
	ImageURL          string        `json:"imageUrl" validate:"omitempty,url"`
	ItemType          string        `json:"itemType" validate:"required,max=64"`
	QuantityPerPeriod int           `json:"quantityPerPeriod" validate:"required,min=1"`
	Period            Period        `json:"period" validate:"required,oneof=day week month"`
	PricePence        int64         `json:"pricePence" validate:"required,min=1"`
	BlackoutTimes     BlackoutTimes `json:"blackoutTimes"`
}

func (s *Service) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	b, ok := s.myBusiness(w, r)
	if !ok {
		return
	}

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages(err.Error()))
		return
	}

	p := Product{
		BusinessID:        b.ID,
		Name:              req.Name,
		Description:       req.Description,
		ImageURL:          req.ImageURL,
		ItemType:          req.ItemType,
		QuantityPerPeriod: req.QuantityPerPeriod,
		Period:            req.Period,
		PricePence:        req.PricePence,
		BlackoutTimes:     req.BlackoutTimes,
	}

	if err := s.ProductManager.Create(ctx, &p); err != nil {
		if errors.Is(err, ErrInvalidProduct) {
			resp.WriteError(w, r, resp.ErrBadRequest().AddMessages(err.Error()))
			return
		}
		s.Logger.Error("Unable to create product",
			zap.Error(err),
			zap.String("BusinessID", b.ID),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to create product"))
		return
	}

	resp.WriteResponse(w, r, p)
}

func (s *Service) listByBusiness(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	businessID := chi.URLParam(r, "businessId")

	results, err := s.ProductManager.List(ctx, ListOption{
		BusinessID: businessID,
		Limit:      100,
	})
	if err != nil {
		s.Logger.Error("Unable to list products",
			zap.Error(err),
			zap.String("BusinessID", businessID),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, results)
}

func (s *Service) listMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	b, ok := s.myBusiness(w, r)
	if !ok {
		return
	}

	results, err := s.ProductManager.List(ctx, ListOption{
		BusinessID:      b.ID,
		IncludeInactive: true,
		Limit:           100,
	})
	if err != nil {
		s.Logger.Error("Unable to list products",
			zap.Error(err),
			zap.String("BusinessID", b.ID),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, results)
}

// UpdateRequest is the model for owner edits of a product
type UpdateRequest struct {
	Name              string         `json:"name" validate:"omitempty,max=120"`
	Description       *string        `json:"description" validate:"omitempty,max=2000"`
	ImageURL          string         `json:"imageUrl" validate:"omitempty,url"`
	QuantityPerPeriod int            `json:"quantityPerPeriod" validate:"omitempty,min=1"`
	PricePence        int64          `json:"pricePence" validate:"omitempty,min=1"`
	BlackoutTimes     *BlackoutTimes `json:"blackoutTimes"`
}

// ownedProduct loads the product and verifies it belongs to the caller's business
func (s *Service) ownedProduct(w http.ResponseWriter, r *http.Request) (*Product, bool) {
	productID := chi.URLParam(r, "id")

	b, ok := s.myBusiness(w, r)
	if !ok {
		return nil, false
	}

	p, err := s.ProductManager.GetByID(r.Context(), productID)
	if err != nil {
		s.Logger.Error("Unable to query product",
			zap.Error(err),
			zap.String("ProductID", productID),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return nil, false
	}
	if p == nil || p.BusinessID != b.ID {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find product with specified ID"))
		return nil, false
	}
	return p, true
}

func (s *Service) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, ok := s.ownedProduct(w, r)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages(err.Error()))
		return
	}

	if req.Name != "" {
		p.Name = req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.ImageURL != "" {
		p.ImageURL = req.ImageURL
	}
	if req.QuantityPerPeriod > 0 {
		p.QuantityPerPeriod = req.QuantityPerPeriod
	}
	if req.PricePence > 0 {
		p.PricePence = req.PricePence
	}
	if req.BlackoutTimes != nil {
		p.BlackoutTimes = *req.BlackoutTimes
	}

	if err := s.ProductManager.Update(ctx, p); err != nil {
		if errors.Is(err, ErrInvalidProduct) {
			resp.WriteError(w, r, resp.ErrBadRequest().AddMessages(err.Error()))
			return
		}
		s.Logger.Error("Unable to update product",
			zap.Error(err),
			zap.String("ProductID", p.ID),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to update product"))
		return
	}

	resp.WriteResponse(w, r, p)
}

func (s *Service) deactivateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, ok := s.ownedProduct(w, r)
	if !ok {
		return
	}

	if err := s.ProductManager.Deactivate(ctx, p.ID); err != nil {
		s.Logger.Error("Unable to deactivate product",
			zap.Error(err),
			zap.String("ProductID", p.ID),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to deactivate product"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Router will return the routes under product API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(s.Auth.Middleware())
	r.Use(s.Auth.RoleMiddleware())

	r.Get("/business/{businessId}", s.listByBusiness)

	r.Group(func(r chi.Router) {
		r.Use(s.Auth.RequireRole(auth.RoleBusinessOwner))
		r.Post("/", s.createProduct)
		r.Get("/mine", s.listMine)
		r.Patch("/{id}", s.updateProduct)
		r.Delete("/{id}", s.deactivateProduct)
	})

	return r
}
