package redemption

import (
	"errors"
	"time"

	"github.com/subscripper/subscripper/product"
	"github.com/subscripper/subscripper/subscription"
)

var (
	// ErrNotActive is returned when the subscription is not in a state
	// that permits redemption
	ErrNotActive = errors.New("subscription is not active")
	// ErrExhausted is returned when the period's allowance is used up
	ErrExhausted = errors.New("no redemptions remaining in the current period")
	// ErrBlackout is returned when the attempt falls inside one of the
	// product's blackout windows
	ErrBlackout = errors.New("redemptions are not available at this time")
	// ErrNotFound is returned when no matching redemption or subscription
	// exists
	ErrNotFound = errors.New("redemption not found")
)

// Remaining derives the unredeemed allowance for the current period,
// floored at 0 so a shrunken quantityPerPeriod cannot go negative
func Remaining(sub *subscription.Subscription, prod *product.Product) int {
	remaining := prod.QuantityPerPeriod - sub.RedemptionsUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// overAllowance reports a counter above the configured allowance. Remaining
// clamps it to keep the arithmetic safe, but the state itself is a fault
// (a quantityPerPeriod lowered mid-period, or a corrupted counter) that
// callers should log.
func overAllowance(sub *subscription.Subscription, prod *product.Product) bool {
	return sub.RedemptionsUsed > prod.QuantityPerPeriod
}

// checkRedeemable applies the redemption rules in order: state first, then
// blackout windows, then the allowance. Pure over its inputs.
func checkRedeemable(sub *subscription.Subscription, prod *product.Product, at time.Time) error {
	if sub.Status != subscription.StateActive {
		return ErrNotActive
	}
	if prod.BlackoutTimes.Contains(at) {
		return ErrBlackout
	}
	if Remaining(sub, prod) <= 0 {
		return ErrExhausted
	}
	return nil
}
