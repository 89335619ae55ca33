package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/subscripper/subscripper/business"
	"github.com/subscripper/subscripper/payment"
	"github.com/subscripper/subscripper/product"
	"github.com/subscripper/subscripper/profile"
)

var (
	// ErrNotFound is returned when no matching subscription exists
	ErrNotFound = errors.New("subscription not found")
	// ErrAlreadySubscribed is returned when the customer already has an
	// ongoing subscription to the same product
	ErrAlreadySubscribed = errors.New("an ongoing subscription to this product already exists")
	// ErrProductUnavailable is returned when the product does not exist or
	// is no longer offered for sale
	ErrProductUnavailable = errors.New("product is not available for subscription")
	// ErrBusinessNotSellable is returned when the owning business cannot
	// accept payments yet
	ErrBusinessNotSellable = errors.New("business is not ready to accept payments")
	// ErrNotCancellable is returned when the subscription is already in a
	// terminal state
	ErrNotCancellable = errors.New("subscription cannot be cancelled")
)

// ManagerOptions describes the dependencies for a subscription Manager
type ManagerOptions struct {
	DB                *gorm.DB
	Processor         payment.Processor
	ProfileManager    *profile.Manager
	ProductManager    *product.Manager
	BusinessManager   *business.Manager
	CommissionPercent float64
	Logger            *zap.Logger
}

// Manager handles the subscription lifecycle: creation against the payment
// gateway, customer cancellation, and transitions driven by gateway events
type Manager struct {
	ManagerOptions
}

func NewManager(option ManagerOptions) (*Manager, error) {
	if option.DB == nil {
		return nil, fmt.Errorf("missing DB")
	}
	if option.Processor == nil {
		return nil, fmt.Errorf("missing Processor")
	}
	if option.ProfileManager == nil {
		return nil, fmt.Errorf("missing ProfileManager")
	}
	if option.ProductManager == nil {
		return nil, fmt.Errorf("missing ProductManager")
	}
	if option.BusinessManager == nil {
		return nil, fmt.Errorf("missing BusinessManager")
	}
	if option.CommissionPercent <= 0 || option.CommissionPercent > 100 {
		return nil, fmt.Errorf("CommissionPercent must be within (0, 100]")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("missing Logger")
	}
	if err := option.DB.AutoMigrate(&Subscription{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initialize subscription.Manager")
	}
	return &Manager{ManagerOptions: option}, nil
}

// SubscribeOption identifies what the customer wants to subscribe to
type SubscribeOption struct {
	UserID    string
	ProductID string
}

// SubscribeResult carries the new subscription row plus the client secret
// the frontend needs to confirm the first payment. ClientSecret is empty
// when the gateway confirmed the payment synchronously.
type SubscribeResult struct {
	Subscription *Subscription `json:"subscription"`
	ClientSecret string        `json:"clientSecret,omitempty"`
}

// Subscribe creates a destination-charge subscription on the gateway and a
// matching local row. The initial period is computed locally from the
// product's cadence; gateway events overwrite it once invoices settle.
func (m *Manager) Subscribe(ctx context.Context, opt SubscribeOption) (*SubscribeResult, error) {
	prod, err := m.ProductManager.GetByID(ctx, opt.ProductID)
	if err != nil {
		return nil, err
	}
	if prod == nil || !prod.IsActive {
		return nil, ErrProductUnavailable
	}

	biz, err := m.BusinessManager.GetByID(ctx, prod.BusinessID)
	if err != nil {
		return nil, err
	}
	if biz == nil || !biz.CanSell() {
		return nil, ErrBusinessNotSellable
	}

	if !prod.Sellable() {
		// gateway mirroring may have failed at creation time, retry now
		if err := m.ProductManager.EnsureGatewayRefs(ctx, prod); err != nil {
			return nil, err
		}
		if !prod.Sellable() {
			return nil, ErrProductUnavailable
		}
	}

	existing, err := m.getOngoing(ctx, opt.UserID, opt.ProductID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadySubscribed
	}

	user, err := m.ProfileManager.GetByID(ctx, opt.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("no profile found for user %s", opt.UserID)
	}
	if user.GatewayCustomerID == "" {
		customerID, err := m.Processor.EnsureCustomer(ctx, payment.CustomerOptions{
			UserID: user.ID,
			Email:  user.Email,
			Name:   user.Name,
		})
		if err != nil {
			return nil, err
		}
		if err := m.ProfileManager.SetGatewayCustomerID(ctx, user.ID, customerID); err != nil {
			return nil, err
		}
		user.GatewayCustomerID = customerID
	}

	gatewaySub, err := m.Processor.CreateSubscription(ctx, payment.CreateSubscriptionOptions{
		CustomerID:           user.GatewayCustomerID,
		PriceID:              prod.GatewayPriceID,
		DestinationAccountID: biz.PaymentAccountID,
		CommissionPercent:    m.CommissionPercent,
		Metadata: map[string]string{
			"user_id":     user.ID,
			"product_id":  prod.ID,
			"business_id": biz.ID,
		},
	})
	if err != nil {
		return nil, err
	}

	status := StatePending
	if gatewaySub.Confirmed {
		status = StateActive
	}
	now := time.Now()
	sub := &Subscription{
		ID:                    uuid.New().String(),
		UserID:                opt.UserID,
		ProductID:             opt.ProductID,
		GatewaySubscriptionID: gatewaySub.ID,
		Status:                status,
		CurrentPeriodStart:    now,
		CurrentPeriodEnd:      ComputePeriodEnd(now, prod.Period),
	}
	if result := m.DB.WithContext(ctx).Create(sub); result.Error != nil {
		if isUniqueViolation(result.Error) {
			// lost the insert race against a concurrent subscribe; stop
			// billing the subscription this request set up
			if cancelErr := m.Processor.CancelSubscription(ctx, gatewaySub.ID); cancelErr != nil {
				m.Logger.Error("Unable to cancel gateway subscription after losing insert race",
					zap.String("GatewaySubscriptionID", gatewaySub.ID),
					zap.Error(cancelErr),
				)
			}
			return nil, ErrAlreadySubscribed
		}
		m.Logger.Error("Unable to create subscription in database",
			zap.String("GatewaySubscriptionID", gatewaySub.ID),
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot create subscription")
	}

	return &SubscribeResult{
		Subscription: sub,
		ClientSecret: gatewaySub.ClientSecret,
	}, nil
}

// Cancel transitions an ongoing subscription to cancelled and asks the
// gateway to stop billing at period end. Cancelling an already terminal
// subscription is an error, not a no-op. When userID is non-empty the
// subscription must belong to that user.
func (m *Manager) Cancel(ctx context.Context, subscriptionID, userID, reason string) (*Subscription, error) {
	var txErr error
	updated, err := m.lambdaUpdate(ctx, "id = ?", subscriptionID, func(current *Subscription, desired *Subscription) bool {
		if userID != "" && current.UserID != userID {
			txErr = ErrNotFound
			return false
		}
		if !current.Ongoing() {
			txErr = ErrNotCancellable
			return false
		}
		now := time.Now()
		desired.Status = StateCancelled
		desired.CancelledAt = &now
		desired.CancelReason = reason
		return true
	})
	if err != nil {
		return nil, err
	}
	if txErr != nil {
		return nil, txErr
	}

	// database state is authoritative; a gateway failure here is retried by
	// reconciliation via subscription.deleted, so log and fail-through
	if err := m.Processor.CancelSubscription(ctx, updated.GatewaySubscriptionID); err != nil {
		m.Logger.Error("Unable to cancel subscription with payment gateway",
			zap.String("SubscriptionID", updated.ID),
			zap.String("GatewaySubscriptionID", updated.GatewaySubscriptionID),
			zap.Error(err),
		)
	}

	return updated, nil
}

// ApplyGatewayEvent runs one verified billing event through the lifecycle
// rules. Events referencing an unknown subscription are logged and dropped
// so replays of foreign or stale events never fail the webhook.
func (m *Manager) ApplyGatewayEvent(ctx context.Context, ev GatewayEvent) error {
	if !ev.Kind.Known() {
		m.Logger.Debug("Ignoring unhandled gateway event",
			zap.String("EventID", ev.ID),
			zap.String("Kind", string(ev.Kind)),
		)
		return nil
	}

	updated, err := m.lambdaUpdate(ctx, "gateway_subscription_id = ?", ev.GatewaySubscriptionID, func(current *Subscription, desired *Subscription) bool {
		return applyEvent(current, desired, ev)
	})
	if errors.Is(err, ErrNotFound) {
		m.Logger.Warn("Gateway event references no known subscription",
			zap.String("EventID", ev.ID),
			zap.String("GatewaySubscriptionID", ev.GatewaySubscriptionID),
		)
		return nil
	}
	if err != nil {
		return err
	}
	if updated != nil {
		m.Logger.Info("Applied gateway event",
			zap.String("EventID", ev.ID),
			zap.String("Kind", string(ev.Kind)),
			zap.String("SubscriptionID", updated.ID),
			zap.String("Status", string(updated.Status)),
		)
	}
	return nil
}

// lambdaUpdateFunc decides a transactional update. current and desired are
// never nil; return true to persist desired.
type lambdaUpdateFunc func(current *Subscription, desired *Subscription) (shouldSave bool)

// lambdaUpdateAttempts bounds the retries on serialization aborts. Two
// serializable writers touching the same row (a cancel racing a renewal
// webhook) make one of them abort with SQLSTATE 40001; the work is safe to
// rerun since nothing was committed.
const lambdaUpdateAttempts = 3

// lambdaUpdate performs a serializable read-modify-write on a single
// subscription row, locked with FOR UPDATE. It returns ErrNotFound when the
// query matches nothing, and nil when the lambda declined to save.
func (m *Manager) lambdaUpdate(ctx context.Context, query string, arg interface{}, lambda lambdaUpdateFunc) (*Subscription, error) {
	var desired Subscription
	var shouldReturn bool
	var err error
	for attempt := 1; attempt <= lambdaUpdateAttempts; attempt++ {
		desired = Subscription{}
		shouldReturn = false
		err = m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var current Subscription
			lookupRes := tx.
				Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&current, query, arg)
			if lookupRes.Error == nil {
				desired = current
				if lambda(&current, &desired) {
					if saveRes := tx.Save(&desired); saveRes.Error != nil {
						return saveRes.Error
					}
					shouldReturn = true
				}
				return nil
			} else if errors.Is(lookupRes.Error, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return lookupRes.Error
		}, &sql.TxOptions{
			Isolation: sql.LevelSerializable,
		})
		if !isSerializationFailure(err) {
			break
		}
		m.Logger.Warn("Retrying after serialization abort",
			zap.Int("Attempt", attempt),
			zap.Error(err),
		)
	}
	if err != nil {
		return nil, err
	}
	if !shouldReturn {
		return nil, nil
	}
	return &desired, nil
}

// isSerializationFailure matches Postgres SQLSTATE 40001
// (serialization_failure), surfaced as text through the gorm error chain
func isSerializationFailure(err error) bool {
	return err != nil && strings.Contains(err.Error(), "40001")
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}

func (m *Manager) getOngoing(ctx context.Context, userID, productID string) (*Subscription, error) {
	sub := Subscription{}
	result := m.DB.WithContext(ctx).
		Where("user_id = ? AND product_id = ? AND status IN ?", userID, productID, []State{StatePending, StateActive, StatePaused}).
		First(&sub)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot query ongoing subscription")
	}
	return &sub, nil
}

// GetByID returns (nil, nil) when no subscription matches
func (m *Manager) GetByID(ctx context.Context, id string) (*Subscription, error) {
	sub := Subscription{}
	result := m.DB.WithContext(ctx).Where("id = ?", id).First(&sub)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get subscription by id")
	}
	return &sub, nil
}

// GetByGatewayID returns (nil, nil) when no subscription matches
func (m *Manager) GetByGatewayID(ctx context.Context, gatewayID string) (*Subscription, error) {
	sub := Subscription{}
	result := m.DB.WithContext(ctx).Where("gateway_subscription_id = ?", gatewayID).First(&sub)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get subscription by gateway id")
	}
	return &sub, nil
}

// List returns the user's subscriptions, newest first. When all is false
// only ongoing subscriptions are returned.
func (m *Manager) List(ctx context.Context, userID string, all bool) ([]Subscription, error) {
	results := make([]Subscription, 0, 1)
	baseQuery := m.DB.WithContext(ctx).Order("created_at desc")
	if !all {
		baseQuery = baseQuery.Where("status IN ?", []State{StatePending, StateActive, StatePaused})
	}
	result := baseQuery.Find(&results, "user_id = ?", userID)
	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, result.Error
	}
	return results, nil
}
