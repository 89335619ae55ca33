package subscription

import (
	"time"
)

// State describes where a subscription sits in its lifecycle
type State string

const (
	// StatePending means the initial payment has not been confirmed yet
	StatePending State = "pending"
	// StateActive means the subscription is paid up for the current period
	StateActive State = "active"
	// StatePaused means a renewal payment failed and redemptions are suspended
	StatePaused State = "paused"
	// StateCancelled is terminal, either by the customer or by the payment gateway
	StateCancelled State = "cancelled"
	// StateExpired is terminal, the gateway gave up collecting the initial payment
	StateExpired State = "expired"
)

// Subscription ties a customer to a product and tracks the redemption
// allowance for the current billing period. Period bounds are half-open:
// CurrentPeriodStart is inclusive, CurrentPeriodEnd is exclusive.
// the partial unique index backs the one-ongoing-subscription rule at the
// store: two racing subscribes cannot both insert a non-terminal row for
// the same user and product
type Subscription struct {
	ID                    string     `json:"id" gorm:"primaryKey"`
	UserID                string     `json:"userId" gorm:"index;index:idx_subscriptions_one_ongoing,unique,where:status <> 'cancelled' AND status <> 'expired'"`
	ProductID             string     `json:"productId" gorm:"index;index:idx_subscriptions_one_ongoing,unique"`
	GatewaySubscriptionID string     `json:"-" gorm:"index"`
	Status                State      `json:"status" gorm:"index"`
	CurrentPeriodStart    time.Time  `json:"currentPeriodStart"`
	CurrentPeriodEnd      time.Time  `json:"currentPeriodEnd"`
	RedemptionsUsed       int        `json:"redemptionsUsed"`
	CancelledAt           *time.Time `json:"cancelledAt,omitempty"`
	CancelReason          string     `json:"cancelReason,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"-"`
}

// Ongoing reports whether the subscription still occupies the customer's
// slot for its product. Terminal states free the slot for resubscribing.
func (s *Subscription) Ongoing() bool {
	switch s.Status {
	case StatePending, StateActive, StatePaused:
		return true
	default:
		return false
	}
}
