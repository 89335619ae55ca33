package subscription

import (
	"time"
)

// EventKind enumerates the billing events we react to. The raw values
// match the payment gateway's event type strings.
type EventKind string

const (
	EventPaymentSucceeded    EventKind = "invoice.payment_succeeded"
	EventPaymentFailed       EventKind = "invoice.payment_failed"
	EventSubscriptionDeleted EventKind = "customer.subscription.deleted"
	EventSubscriptionUpdated EventKind = "customer.subscription.updated"
)

// Known reports whether the event kind participates in lifecycle transitions
func (k EventKind) Known() bool {
	switch k {
	case EventPaymentSucceeded, EventPaymentFailed, EventSubscriptionDeleted, EventSubscriptionUpdated:
		return true
	}
	return false
}

// GatewayEvent is the normalized form of a billing event after webhook
// verification. PeriodStart/PeriodEnd are zero when the gateway did not
// report period bounds for this event. GatewayStatus carries the raw
// provider status and is only meaningful for EventSubscriptionUpdated.
type GatewayEvent struct {
	ID                    string
	Kind                  EventKind
	GatewaySubscriptionID string
	PeriodStart           time.Time
	PeriodEnd             time.Time
	GatewayStatus         string
}

// statusToState maps the gateway's subscription status to our lifecycle
// state. Unrecognized statuses map to the empty state and are ignored.
func statusToState(gatewayStatus string) State {
	switch gatewayStatus {
	case "active", "trialing":
		return StateActive
	case "past_due", "unpaid", "paused":
		return StatePaused
	case "canceled":
		return StateCancelled
	case "incomplete":
		return StatePending
	case "incomplete_expired":
		return StateExpired
	}
	return State("")
}

// applyEvent mutates desired according to the lifecycle rules and reports
// whether anything changed. Combinations with no defined transition leave
// the subscription untouched and return false. Terminal states never
// transition out.
func applyEvent(current *Subscription, desired *Subscription, ev GatewayEvent) bool {
	if current.Status == StateCancelled || current.Status == StateExpired {
		return false
	}

	switch ev.Kind {
	case EventPaymentSucceeded:
		switch current.Status {
		case StatePending, StateActive, StatePaused:
			desired.Status = StateActive
			if !ev.PeriodStart.IsZero() && !ev.PeriodEnd.IsZero() {
				if ev.PeriodEnd.After(current.CurrentPeriodEnd) {
					// a new period opened, the allowance starts over
					desired.RedemptionsUsed = 0
				}
				desired.CurrentPeriodStart = ev.PeriodStart
				desired.CurrentPeriodEnd = ev.PeriodEnd
			}
			return true
		}
		return false
	case EventPaymentFailed:
		if current.Status == StateActive {
			desired.Status = StatePaused
			return true
		}
		return false
	case EventSubscriptionDeleted:
		switch current.Status {
		case StatePending, StateActive, StatePaused:
			desired.Status = StateCancelled
			now := time.Now()
			desired.CancelledAt = &now
			return true
		}
		return false
	case EventSubscriptionUpdated:
		mapped := statusToState(ev.GatewayStatus)
		if mapped == "" {
			return false
		}
		changed := false
		if mapped != current.Status {
			desired.Status = mapped
			if mapped == StateCancelled {
				now := time.Now()
				desired.CancelledAt = &now
			}
			changed = true
		}
		if !ev.PeriodStart.IsZero() && !ev.PeriodEnd.IsZero() &&
			(!ev.PeriodStart.Equal(current.CurrentPeriodStart) || !ev.PeriodEnd.Equal(current.CurrentPeriodEnd)) {
			desired.CurrentPeriodStart = ev.PeriodStart
			desired.CurrentPeriodEnd = ev.PeriodEnd
			changed = true
		}
		return changed
	}
	return false
}
