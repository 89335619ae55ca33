package broker

import (
	"context"
	"time"
)

// NotificationKind classifies what happened so the notifier can choose a
// template
type NotificationKind string

const (
	KindPaymentFailed         NotificationKind = "payment_failed"
	KindSubscriptionCancelled NotificationKind = "subscription_cancelled"
	KindStaffInvited          NotificationKind = "staff_invited"
)

// Notification is the message published when something a user should hear
// about happens. Email may be empty when only a user id is known; the
// notifier resolves it from the profile store.
type Notification struct {
	Kind           NotificationKind `json:"kind"`
	UserID         string           `json:"userId,omitempty"`
	Email          string           `json:"email,omitempty"`
	SubscriptionID string           `json:"subscriptionId,omitempty"`
	BusinessID     string           `json:"businessId,omitempty"`
	Message        string           `json:"message,omitempty"`
	OccurredAt     time.Time        `json:"occurredAt"`
}

// Producer publishes notifications
type Producer interface {
	SendNotification(n *Notification) error
	Close()
}

// Consumer receives notifications until the context is cancelled
type Consumer interface {
	ReceiveNotifications(ctx context.Context) (<-chan *Notification, error)
	Close()
}
