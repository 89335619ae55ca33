package redemption

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subscripper/subscripper/product"
	"github.com/subscripper/subscripper/subscription"
)

func weeklyCoffee(quantity int) *product.Product {
	return &product.Product{
		ID:                "prod-coffee",
		BusinessID:        "biz-1",
		Name:              "Coffee club",
		ItemType:          "coffee",
		QuantityPerPeriod: quantity,
		Period:            product.PeriodWeek,
		PricePence:        999,
		IsActive:          true,
	}
}

func activeSubscription(used int) *subscription.Subscription {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	return &subscription.Subscription{
		ID:                 "sub-1",
		UserID:             "user-1",
		ProductID:          "prod-coffee",
		Status:             subscription.StateActive,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   start.AddDate(0, 0, 7),
		RedemptionsUsed:    used,
	}
}

func TestRemainingFloorsAtZero(t *testing.T) {
	prod := weeklyCoffee(3)

	assert.Equal(t, 3, Remaining(activeSubscription(0), prod))
	assert.Equal(t, 1, Remaining(activeSubscription(2), prod))
	assert.Equal(t, 0, Remaining(activeSubscription(3), prod))
	// allowance shrank after redemptions were already made
	assert.Equal(t, 0, Remaining(activeSubscription(5), prod))
}

func TestCheckRedeemableStateGate(t *testing.T) {
	prod := weeklyCoffee(3)
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	for _, state := range []subscription.State{
		subscription.StatePending,
		subscription.StatePaused,
		subscription.StateCancelled,
		subscription.StateExpired,
	} {
		sub := activeSubscription(0)
		sub.Status = state
		assert.ErrorIs(t, checkRedeemable(sub, prod, now), ErrNotActive, "state %s", state)
	}

	assert.NoError(t, checkRedeemable(activeSubscription(0), prod, now))
}

func TestCheckRedeemableExhaustion(t *testing.T) {
	// quantityPerPeriod=3: three redemptions fit, the fourth is refused
	prod := weeklyCoffee(3)
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	for used := 0; used < 3; used++ {
		assert.NoError(t, checkRedeemable(activeSubscription(used), prod, now), "used=%d", used)
	}
	assert.ErrorIs(t, checkRedeemable(activeSubscription(3), prod, now), ErrExhausted)
}

func TestCheckRedeemableBlackout(t *testing.T) {
	prod := weeklyCoffee(3)
	prod.BlackoutTimes = product.BlackoutTimes{
		{Day: "wednesday", Start: "12:00", End: "14:00"},
	}

	// 2026-03-04 is a Wednesday
	insideWindow := time.Date(2026, 3, 4, 12, 30, 0, 0, time.UTC)
	outsideWindow := time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)

	assert.ErrorIs(t, checkRedeemable(activeSubscription(0), prod, insideWindow), ErrBlackout)
	assert.NoError(t, checkRedeemable(activeSubscription(0), prod, outsideWindow))
}

func TestCheckRedeemableBlackoutBusinessZone(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	prod := weeklyCoffee(3)
	prod.BlackoutTimes = product.BlackoutTimes{
		{Day: "wednesday", Start: "12:00", End: "14:00"},
	}

	// 17:30 UTC on 2026-03-04 is 12:30 on the east coast, inside the
	// window on the business's clock but not on the server's
	at := time.Date(2026, 3, 4, 17, 30, 0, 0, time.UTC)

	assert.NoError(t, checkRedeemable(activeSubscription(0), prod, at))
	assert.ErrorIs(t, checkRedeemable(activeSubscription(0), prod, at.In(newYork)), ErrBlackout)
}

func TestOverAllowance(t *testing.T) {
	prod := weeklyCoffee(3)

	assert.False(t, overAllowance(activeSubscription(2), prod))
	assert.False(t, overAllowance(activeSubscription(3), prod))
	// the counter can only exceed the allowance when quantityPerPeriod
	// shrank mid-period or the counter was corrupted
	assert.True(t, overAllowance(activeSubscription(4), prod))
}

func TestRuleOrderingStateBeforeBlackout(t *testing.T) {
	prod := weeklyCoffee(3)
	prod.BlackoutTimes = product.BlackoutTimes{
		{Day: "wednesday", Start: "00:00", End: "23:59"},
	}
	insideWindow := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

	sub := activeSubscription(3)
	sub.Status = subscription.StatePaused
	assert.ErrorIs(t, checkRedeemable(sub, prod, insideWindow), ErrNotActive)
}

func TestRedeemUndoCounterSequence(t *testing.T) {
	// the counter invariant 0 <= used <= Q over an arbitrary sequence,
	// played out against the pure rules the way the transaction applies them
	prod := weeklyCoffee(3)
	sub := activeSubscription(0)
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	redeem := func() error {
		if err := checkRedeemable(sub, prod, now); err != nil {
			return err
		}
		sub.RedemptionsUsed++
		return nil
	}
	undo := func() {
		if sub.RedemptionsUsed > 0 {
			sub.RedemptionsUsed--
		}
	}

	require.NoError(t, redeem())
	assert.Equal(t, 1, sub.RedemptionsUsed)

	// undo restores the pre-redeem value
	undo()
	assert.Equal(t, 0, sub.RedemptionsUsed)

	require.NoError(t, redeem())
	require.NoError(t, redeem())
	require.NoError(t, redeem())
	assert.Equal(t, 3, sub.RedemptionsUsed)
	assert.ErrorIs(t, redeem(), ErrExhausted)

	undo()
	require.NoError(t, redeem())
	assert.Equal(t, 3, sub.RedemptionsUsed)
	assert.GreaterOrEqual(t, sub.RedemptionsUsed, 0)
	assert.LessOrEqual(t, sub.RedemptionsUsed, prod.QuantityPerPeriod)
}

func TestCountedReflectsUndo(t *testing.T) {
	red := &Redemption{}
	assert.True(t, red.Counted())

	now := time.Now()
	red.UndoneAt = &now
	assert.False(t, red.Counted())
}
