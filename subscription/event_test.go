package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSubscription(status State) *Subscription {
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	return &Subscription{
		ID:                    "sub-local",
		GatewaySubscriptionID: "sub-gw",
		Status:                status,
		CurrentPeriodStart:    start,
		CurrentPeriodEnd:      start.AddDate(0, 1, 0),
		RedemptionsUsed:       3,
	}
}

func apply(sub *Subscription, ev GatewayEvent) (*Subscription, bool) {
	desired := *sub
	changed := applyEvent(sub, &desired, ev)
	return &desired, changed
}

func TestPaymentSucceededActivates(t *testing.T) {
	for _, from := range []State{StatePending, StateActive, StatePaused} {
		sub := testSubscription(from)
		desired, changed := apply(sub, GatewayEvent{Kind: EventPaymentSucceeded})

		assert.True(t, changed, "from %s", from)
		assert.Equal(t, StateActive, desired.Status)
		assert.Equal(t, 3, desired.RedemptionsUsed, "no period advance, counter untouched")
	}
}

func TestPaymentSucceededRenewalResetsAllowance(t *testing.T) {
	sub := testSubscription(StatePaused)
	newStart := sub.CurrentPeriodEnd
	newEnd := newStart.AddDate(0, 1, 0)

	desired, changed := apply(sub, GatewayEvent{
		Kind:        EventPaymentSucceeded,
		PeriodStart: newStart,
		PeriodEnd:   newEnd,
	})

	require.True(t, changed)
	assert.Equal(t, StateActive, desired.Status)
	assert.Equal(t, 0, desired.RedemptionsUsed)
	assert.True(t, newStart.Equal(desired.CurrentPeriodStart))
	assert.True(t, newEnd.Equal(desired.CurrentPeriodEnd))
}

func TestPaymentSucceededRedeliveryKeepsAllowance(t *testing.T) {
	// redelivered initial invoice reports the current period again
	sub := testSubscription(StateActive)

	desired, changed := apply(sub, GatewayEvent{
		Kind:        EventPaymentSucceeded,
		PeriodStart: sub.CurrentPeriodStart,
		PeriodEnd:   sub.CurrentPeriodEnd,
	})

	require.True(t, changed)
	assert.Equal(t, 3, desired.RedemptionsUsed)
}

func TestPaymentFailedPausesActiveOnly(t *testing.T) {
	sub := testSubscription(StateActive)
	desired, changed := apply(sub, GatewayEvent{Kind: EventPaymentFailed})
	require.True(t, changed)
	assert.Equal(t, StatePaused, desired.Status)

	for _, from := range []State{StatePending, StatePaused} {
		sub := testSubscription(from)
		desired, changed := apply(sub, GatewayEvent{Kind: EventPaymentFailed})
		assert.False(t, changed, "from %s", from)
		assert.Equal(t, from, desired.Status)
	}
}

func TestSubscriptionDeletedCancels(t *testing.T) {
	for _, from := range []State{StatePending, StateActive, StatePaused} {
		sub := testSubscription(from)
		desired, changed := apply(sub, GatewayEvent{Kind: EventSubscriptionDeleted})

		require.True(t, changed, "from %s", from)
		assert.Equal(t, StateCancelled, desired.Status)
		require.NotNil(t, desired.CancelledAt)
	}
}

func TestSubscriptionUpdatedStatusMapping(t *testing.T) {
	tests := []struct {
		gatewayStatus string
		expected      State
	}{
		{"active", StateActive},
		{"trialing", StateActive},
		{"past_due", StatePaused},
		{"unpaid", StatePaused},
		{"paused", StatePaused},
		{"canceled", StateCancelled},
		{"incomplete_expired", StateExpired},
	}

	for _, tc := range tests {
		t.Run(tc.gatewayStatus, func(t *testing.T) {
			sub := testSubscription(StatePending)
			desired, changed := apply(sub, GatewayEvent{
				Kind:          EventSubscriptionUpdated,
				GatewayStatus: tc.gatewayStatus,
			})
			require.True(t, changed)
			assert.Equal(t, tc.expected, desired.Status)
		})
	}
}

func TestSubscriptionUpdatedUnknownStatusIgnored(t *testing.T) {
	sub := testSubscription(StateActive)
	desired, changed := apply(sub, GatewayEvent{
		Kind:          EventSubscriptionUpdated,
		GatewayStatus: "something_new",
	})
	assert.False(t, changed)
	assert.Equal(t, StateActive, desired.Status)
	assert.Equal(t, 3, desired.RedemptionsUsed)
}

func TestTerminalStatesNeverTransition(t *testing.T) {
	events := []GatewayEvent{
		{Kind: EventPaymentSucceeded},
		{Kind: EventPaymentFailed},
		{Kind: EventSubscriptionDeleted},
		{Kind: EventSubscriptionUpdated, GatewayStatus: "active"},
	}

	for _, terminal := range []State{StateCancelled, StateExpired} {
		for _, ev := range events {
			sub := testSubscription(terminal)
			desired, changed := apply(sub, ev)
			assert.False(t, changed, "%s on %s", ev.Kind, terminal)
			assert.Equal(t, terminal, desired.Status)
			assert.Equal(t, 3, desired.RedemptionsUsed)
		}
	}
}

func TestUndefinedCombinationsLeaveCountersUntouched(t *testing.T) {
	sub := testSubscription(StatePending)
	desired, changed := apply(sub, GatewayEvent{Kind: EventPaymentFailed})
	assert.False(t, changed)
	assert.Equal(t, sub.RedemptionsUsed, desired.RedemptionsUsed)
	assert.True(t, sub.CurrentPeriodStart.Equal(desired.CurrentPeriodStart))
	assert.True(t, sub.CurrentPeriodEnd.Equal(desired.CurrentPeriodEnd))
}
