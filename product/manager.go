package product

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/subscripper/subscripper/payment"

	"github.com/google/uuid"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrInvalidProduct signals a product violating the allowance/price invariants
var ErrInvalidProduct = errors.New("product must have quantityPerPeriod >= 1, pricePence > 0 and a valid period")

// ManagerOptions contains the configuration for the product Manager
type ManagerOptions struct {
	DB        *gorm.DB
	Processor payment.Processor
	Logger    *zap.Logger
}

// Manager handles the database and gateway operations relating to Products
type Manager struct {
	ManagerOptions
}

// NewManager returns a new Manager for subscription products
func NewManager(option ManagerOptions) (*Manager, error) {
	if option.DB == nil {
		return nil, fmt.Errorf("nil DB is invalid")
	}
	if option.Processor == nil {
		return nil, fmt.Errorf("nil Processor is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if err := option.DB.AutoMigrate(&Product{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initialize product.Manager")
	}
	return &Manager{
		ManagerOptions: option,
	}, nil
}

func validateProduct(p *Product) error {
	if p.QuantityPerPeriod < 1 || p.PricePence <= 0 || !p.Period.Valid() {
		return ErrInvalidProduct
	}
	return nil
}

// Create persists a new product and mirrors it onto the gateway. Gateway
// failure is logged but does not fail the create: the refs can be backfilled
// later via EnsureGatewayRefs, and the product cannot be sold until then.
func (m *Manager) Create(ctx context.Context, p *Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	p.ID = uuid.New().String()
	p.IsActive = true

	result := m.DB.WithContext(ctx).Create(p)
	if result.Error != nil {
		m.Logger.Error("Unable to create new product in database",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot create product")
	}

	if err := m.EnsureGatewayRefs(ctx, p); err != nil {
		m.Logger.Warn("Product created without gateway references",
			zap.Error(err),
			zap.String("ProductID", p.ID),
		)
	}

	return nil
}

// EnsureGatewayRefs mirrors the product onto the gateway if it has no
// product/price references yet
func (m *Manager) EnsureGatewayRefs(ctx context.Context, p *Product) error {
	if len(p.GatewayProductID) > 0 && len(p.GatewayPriceID) > 0 {
		return nil
	}

	refs, err := m.Processor.CreateProduct(ctx, payment.CreateProductOptions{
		Name:        p.Name,
		Description: p.Description,
		ItemType:    p.ItemType,
		PricePence:  p.PricePence,
		Interval:    string(p.Period),
	})
	if err != nil {
		return err
	}

	result := m.DB.WithContext(ctx).Model(&Product{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
		"gateway_product_id": refs.ProductID,
		"gateway_price_id":   refs.PriceID,
	})
	if result.Error != nil {
		return extErrors.Wrap(result.Error, "Cannot persist gateway references")
	}

	p.GatewayProductID = refs.ProductID
	p.GatewayPriceID = refs.PriceID
	return nil
}

// GetByID will try to return the product in the database by id
func (m *Manager) GetByID(ctx context.Context, id string) (*Product, error) {
	var p Product

	result := m.DB.WithContext(ctx).First(&p, "id = ?", id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get product by id")
	}

	return &p, nil
}

// ListOption customizes the product listing
type ListOption struct {
	BusinessID      string
	IncludeInactive bool
	Before          time.Time
	Limit           int
}

// List returns products for a business ordered by creation time
func (m *Manager) List(ctx context.Context, opt ListOption) ([]Product, error) {
	if len(opt.BusinessID) == 0 {
		return nil, fmt.Errorf("ListOption.BusinessID is required")
	}
	baseQuery := m.DB.WithContext(ctx).Order("created_at desc").Where("business_id = ?", opt.BusinessID)
	if !opt.IncludeInactive {
		baseQuery = baseQuery.Where("is_active = ?", true)
	}
	if opt.Limit > 0 {
		baseQuery = baseQuery.Limit(opt.Limit)
	}
	if !opt.Before.IsZero() {
		baseQuery = baseQuery.Where("created_at < ?", opt.Before)
	}

	results := make([]Product, 0, 1)
	result := baseQuery.Find(&results)
	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, result.Error
	}
	return results, nil
}

// Update persists owner edits. Price, name and allowance edits never alter
// already-elapsed periods: existing subscription rows keep their boundaries.
func (m *Manager) Update(ctx context.Context, p *Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	result := m.DB.WithContext(ctx).Save(p)
	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot update product")
	}
	return nil
}

// Deactivate soft-deletes the product. Products are never hard-deleted:
// subscriptions and the redemption ledger keep referencing them.
func (m *Manager) Deactivate(ctx context.Context, id string) error {
	result := m.DB.WithContext(ctx).Model(&Product{}).Where("id = ?", id).Update("is_active", false)
	if result.Error != nil {
		return extErrors.Wrap(result.Error, "Cannot deactivate product")
	}
	return nil
}
