package webhook

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v72"

	"github.com/subscripper/subscripper/subscription"
)

func gatewayEvent(t *testing.T, id, eventType string, object interface{}) *stripe.Event {
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	return &stripe.Event{
		ID:   id,
		Type: eventType,
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestParseInvoiceEvents(t *testing.T) {
	periodStart := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := periodStart.AddDate(0, 1, 0)

	invoice := map[string]interface{}{
		"id":           "in_123",
		"subscription": "sub_gw_123",
		"lines": map[string]interface{}{
			"data": []map[string]interface{}{
				{
					"id": "il_123",
					"period": map[string]int64{
						"start": periodStart.Unix(),
						"end":   periodEnd.Unix(),
					},
				},
			},
		},
	}

	for _, eventType := range []string{"invoice.payment_succeeded", "invoice.payment_failed"} {
		t.Run(eventType, func(t *testing.T) {
			ev, handled, err := parseEvent(gatewayEvent(t, "evt_1", eventType, invoice))
			require.NoError(t, err)
			require.True(t, handled)

			assert.Equal(t, "evt_1", ev.ID)
			assert.Equal(t, subscription.EventKind(eventType), ev.Kind)
			assert.Equal(t, "sub_gw_123", ev.GatewaySubscriptionID)
			assert.True(t, periodStart.Equal(ev.PeriodStart))
			assert.True(t, periodEnd.Equal(ev.PeriodEnd))
		})
	}
}

func TestParseInvoiceWithoutSubscriptionIgnored(t *testing.T) {
	invoice := map[string]interface{}{
		"id": "in_oneoff",
	}

	_, handled, err := parseEvent(gatewayEvent(t, "evt_2", "invoice.payment_succeeded", invoice))
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestParseSubscriptionEvents(t *testing.T) {
	periodStart := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := periodStart.AddDate(0, 1, 0)

	sub := map[string]interface{}{
		"id":                   "sub_gw_456",
		"status":               "past_due",
		"current_period_start": periodStart.Unix(),
		"current_period_end":   periodEnd.Unix(),
	}

	ev, handled, err := parseEvent(gatewayEvent(t, "evt_3", "customer.subscription.updated", sub))
	require.NoError(t, err)
	require.True(t, handled)

	assert.Equal(t, subscription.EventSubscriptionUpdated, ev.Kind)
	assert.Equal(t, "sub_gw_456", ev.GatewaySubscriptionID)
	assert.Equal(t, "past_due", ev.GatewayStatus)
	assert.True(t, periodStart.Equal(ev.PeriodStart))
	assert.True(t, periodEnd.Equal(ev.PeriodEnd))

	ev, handled, err = parseEvent(gatewayEvent(t, "evt_4", "customer.subscription.deleted", sub))
	require.NoError(t, err)
	require.True(t, handled)
	assert.Equal(t, subscription.EventSubscriptionDeleted, ev.Kind)
}

func TestParseUnknownEventTypeIgnored(t *testing.T) {
	_, handled, err := parseEvent(gatewayEvent(t, "evt_5", "charge.refunded", map[string]interface{}{"id": "ch_1"}))
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestMemoryDeduper(t *testing.T) {
	d := NewMemoryDeduper()

	first, err := d.FirstDelivery("evt_1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.FirstDelivery("evt_1")
	require.NoError(t, err)
	assert.False(t, again, "redelivery must not win the claim")

	other, err := d.FirstDelivery("evt_2")
	require.NoError(t, err)
	assert.True(t, other)
}

func TestMemoryDeduperReleaseRestoresClaim(t *testing.T) {
	d := NewMemoryDeduper()

	first, err := d.FirstDelivery("evt_1")
	require.NoError(t, err)
	require.True(t, first)

	// applying the event failed, so the claim goes back before the 503
	require.NoError(t, d.Release("evt_1"))

	redelivered, err := d.FirstDelivery("evt_1")
	require.NoError(t, err)
	assert.True(t, redelivered, "redelivery after a release must win the claim again")

	// releasing an id that was never claimed is harmless
	assert.NoError(t, d.Release("evt_unknown"))
}
