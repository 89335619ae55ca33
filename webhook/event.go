package webhook

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v72"

	"github.com/subscripper/subscripper/subscription"
)

// parseEvent normalizes a verified gateway event into the form the
// subscription lifecycle consumes. Returns (zero, false, nil) for event
// kinds we do not react to.
func parseEvent(event *stripe.Event) (subscription.GatewayEvent, bool, error) {
	kind := subscription.EventKind(event.Type)
	if !kind.Known() {
		return subscription.GatewayEvent{}, false, nil
	}

	out := subscription.GatewayEvent{
		ID:   event.ID,
		Kind: kind,
	}

	switch kind {
	case subscription.EventPaymentSucceeded, subscription.EventPaymentFailed:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return subscription.GatewayEvent{}, false, fmt.Errorf("malformed invoice payload: %w", err)
		}
		if invoice.Subscription == nil || invoice.Subscription.ID == "" {
			// one-off invoices carry no subscription reference
			return subscription.GatewayEvent{}, false, nil
		}
		out.GatewaySubscriptionID = invoice.Subscription.ID
		start, end := invoicePeriod(&invoice)
		out.PeriodStart = start
		out.PeriodEnd = end
	case subscription.EventSubscriptionDeleted, subscription.EventSubscriptionUpdated:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return subscription.GatewayEvent{}, false, fmt.Errorf("malformed subscription payload: %w", err)
		}
		out.GatewaySubscriptionID = sub.ID
		out.GatewayStatus = string(sub.Status)
		if sub.CurrentPeriodStart > 0 && sub.CurrentPeriodEnd > 0 {
			out.PeriodStart = time.Unix(sub.CurrentPeriodStart, 0).UTC()
			out.PeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		}
	}

	return out, true, nil
}

// invoicePeriod prefers the line item's period, which reflects the service
// window being billed, over the invoice-level timestamps
func invoicePeriod(invoice *stripe.Invoice) (time.Time, time.Time) {
	if invoice.Lines != nil {
		for _, line := range invoice.Lines.Data {
			if line.Period != nil && line.Period.Start > 0 && line.Period.End > 0 {
				return time.Unix(line.Period.Start, 0).UTC(), time.Unix(line.Period.End, 0).UTC()
			}
		}
	}
	if invoice.PeriodStart > 0 && invoice.PeriodEnd > 0 {
		return time.Unix(invoice.PeriodStart, 0).UTC(), time.Unix(invoice.PeriodEnd, 0).UTC()
	}
	return time.Time{}, time.Time{}
}
