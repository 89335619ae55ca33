package redemption

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lithammer/shortuuid/v3"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/subscripper/subscripper/business"
	"github.com/subscripper/subscripper/product"
	"github.com/subscripper/subscripper/subscription"
)

// ManagerOptions describes the dependencies for a redemption Manager
type ManagerOptions struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// Manager maintains the redemption ledger and the allowance counter on the
// subscription row. The ledger append and the counter bump always happen in
// one serializable transaction with the subscription locked, so concurrent
// staff devices cannot double-spend the allowance.
type Manager struct {
	ManagerOptions
}

func NewManager(option ManagerOptions) (*Manager, error) {
	if option.DB == nil {
		return nil, fmt.Errorf("missing DB")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("missing Logger")
	}
	if err := option.DB.AutoMigrate(&Redemption{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initialize redemption.Manager")
	}
	return &Manager{ManagerOptions: option}, nil
}

// RedeemOption identifies the redemption attempt. BusinessID scopes the
// lookup to the staff member's own business.
type RedeemOption struct {
	SubscriptionID string
	BusinessID     string
	StaffID        string
}

// Redeem consumes one unit of allowance. The subscription row is locked
// FOR UPDATE for the duration, then the rules run against the locked state
// and the wall clock, and finally the ledger row and counter land together.
func (m *Manager) Redeem(ctx context.Context, opt RedeemOption) (*Redemption, error) {
	var created Redemption
	err := m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub subscription.Subscription
		lookupRes := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&sub, "id = ?", opt.SubscriptionID)
		if errors.Is(lookupRes.Error, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if lookupRes.Error != nil {
			return lookupRes.Error
		}

		var prod product.Product
		prodRes := tx.First(&prod, "id = ?", sub.ProductID)
		if errors.Is(prodRes.Error, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if prodRes.Error != nil {
			return prodRes.Error
		}
		if opt.BusinessID != "" && prod.BusinessID != opt.BusinessID {
			return ErrNotFound
		}

		var biz business.Business
		bizRes := tx.First(&biz, "id = ?", prod.BusinessID)
		if bizRes.Error != nil && !errors.Is(bizRes.Error, gorm.ErrRecordNotFound) {
			return bizRes.Error
		}

		if overAllowance(&sub, &prod) {
			m.Logger.Warn("Redemption counter exceeds the configured allowance",
				zap.String("SubscriptionID", sub.ID),
				zap.String("ProductID", prod.ID),
				zap.Int("RedemptionsUsed", sub.RedemptionsUsed),
				zap.Int("QuantityPerPeriod", prod.QuantityPerPeriod),
			)
		}

		now := time.Now()
		// blackout windows are wall-clock rules, evaluated in the
		// business's own timezone
		if err := checkRedeemable(&sub, &prod, now.In(biz.Location())); err != nil {
			return err
		}

		created = Redemption{
			ID:             shortuuid.New(),
			SubscriptionID: sub.ID,
			ProductID:      prod.ID,
			BusinessID:     prod.BusinessID,
			UserID:         sub.UserID,
			ItemType:       prod.ItemType,
			RedeemedBy:     opt.StaffID,
			RedeemedAt:     now,
		}
		if createRes := tx.Create(&created); createRes.Error != nil {
			return createRes.Error
		}

		bumpRes := tx.Model(&subscription.Subscription{}).
			Where("id = ?", sub.ID).
			UpdateColumn("redemptions_used", gorm.Expr("redemptions_used + 1"))
		return bumpRes.Error
	}, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Undo reverses a redemption. The ledger row is stamped, never deleted,
// and the counter decrement is floored at 0. Undoing twice is ErrNotFound
// because the row no longer matches the non-undone filter.
func (m *Manager) Undo(ctx context.Context, redemptionID, businessID, staffID string) (*Redemption, error) {
	var undone Redemption
	err := m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lookupRes := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&undone, "id = ? AND undone_at IS NULL", redemptionID)
		if errors.Is(lookupRes.Error, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if lookupRes.Error != nil {
			return lookupRes.Error
		}
		if businessID != "" && undone.BusinessID != businessID {
			return ErrNotFound
		}

		now := time.Now()
		undone.UndoneAt = &now
		undone.UndoneBy = staffID
		if saveRes := tx.Save(&undone); saveRes.Error != nil {
			return saveRes.Error
		}

		dropRes := tx.Model(&subscription.Subscription{}).
			Where("id = ?", undone.SubscriptionID).
			UpdateColumn("redemptions_used", gorm.Expr("GREATEST(redemptions_used - 1, 0)"))
		return dropRes.Error
	}, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return nil, err
	}
	return &undone, nil
}

// ListBySubscription returns the full ledger for a subscription, newest
// first, undone rows included
func (m *Manager) ListBySubscription(ctx context.Context, subscriptionID string) ([]Redemption, error) {
	results := make([]Redemption, 0, 1)
	result := m.DB.WithContext(ctx).
		Order("redeemed_at desc").
		Find(&results, "subscription_id = ?", subscriptionID)
	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, result.Error
	}
	return results, nil
}

// ListByBusiness returns a business's recent redemptions, newest first
func (m *Manager) ListByBusiness(ctx context.Context, businessID string, limit int) ([]Redemption, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	results := make([]Redemption, 0, limit)
	result := m.DB.WithContext(ctx).
		Order("redeemed_at desc").
		Limit(limit).
		Find(&results, "business_id = ?", businessID)
	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, result.Error
	}
	return results, nil
}
