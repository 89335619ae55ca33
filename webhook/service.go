package webhook

import (
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	stripeWebhook "github.com/stripe/stripe-go/v72/webhook"
	"go.uber.org/zap"

	"github.com/subscripper/subscripper/broker"
	"github.com/subscripper/subscripper/subscription"
)

// the gateway's payloads are small; cap reads well above any real event
const maxBodyBytes = int64(65536)

// ServiceOptions contains the configuration for Service router
type ServiceOptions struct {
	SubscriptionManager *subscription.Manager
	Deduper             Deduper
	Producer            broker.Producer
	SigningSecret       string
	Logger              *zap.Logger
}

// Service receives the payment gateway's webhook deliveries. The signature
// check is the endpoint's only authentication; there is no session here.
type Service struct {
	ServiceOptions
}

// NewService will create an instance of the webhook handler
func NewService(option ServiceOptions) (*Service, error) {
	if option.SubscriptionManager == nil {
		return nil, fmt.Errorf("nil SubscriptionManager is invalid")
	}
	if option.Deduper == nil {
		return nil, fmt.Errorf("nil Deduper is invalid")
	}
	if len(option.SigningSecret) == 0 {
		return nil, fmt.Errorf("empty SigningSecret is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		ServiceOptions: option,
	}, nil
}

func (s *Service) handleEvent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	payload, err := ioutil.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "cannot read payload", http.StatusBadRequest)
		return
	}

	event, err := stripeWebhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), s.SigningSecret)
	if err != nil {
		s.Logger.Warn("Rejecting webhook delivery with bad signature",
			zap.Error(err),
		)
		http.Error(w, "signature verification failed", http.StatusBadRequest)
		return
	}

	first, err := s.Deduper.FirstDelivery(event.ID)
	if err != nil {
		// claiming failed, ask the gateway to redeliver
		s.Logger.Error("Unable to claim event id",
			zap.String("EventID", event.ID),
			zap.Error(err),
		)
		http.Error(w, "try again", http.StatusServiceUnavailable)
		return
	}
	if !first {
		s.Logger.Info("Dropping redelivered event",
			zap.String("EventID", event.ID),
			zap.String("Type", event.Type),
		)
		w.WriteHeader(http.StatusOK)
		return
	}

	gatewayEvent, handled, err := parseEvent(&event)
	if err != nil {
		s.Logger.Error("Unable to parse event payload",
			zap.String("EventID", event.ID),
			zap.String("Type", event.Type),
			zap.Error(err),
		)
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}
	if !handled {
		s.Logger.Debug("Ignoring event type",
			zap.String("EventID", event.ID),
			zap.String("Type", event.Type),
		)
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := s.SubscriptionManager.ApplyGatewayEvent(r.Context(), gatewayEvent); err != nil {
		s.Logger.Error("Unable to apply gateway event",
			zap.String("EventID", event.ID),
			zap.Error(err),
		)
		// give the claim back, otherwise the redelivery we are asking
		// for would be dropped as a replay
		if relErr := s.Deduper.Release(event.ID); relErr != nil {
			s.Logger.Error("Unable to release claimed event id",
				zap.String("EventID", event.ID),
				zap.Error(relErr),
			)
		}
		http.Error(w, "try again", http.StatusServiceUnavailable)
		return
	}

	switch gatewayEvent.Kind {
	case subscription.EventPaymentFailed:
		s.notify(r, gatewayEvent, broker.KindPaymentFailed,
			"A renewal payment failed and your subscription is paused")
	case subscription.EventSubscriptionDeleted:
		s.notify(r, gatewayEvent, broker.KindSubscriptionCancelled,
			"Your subscription has been cancelled")
	}

	w.WriteHeader(http.StatusOK)
}

// notify is best-effort: a lost notification never fails the delivery, the
// subscription state is already consistent
func (s *Service) notify(r *http.Request, ev subscription.GatewayEvent, kind broker.NotificationKind, message string) {
	if s.Producer == nil {
		return
	}
	sub, err := s.SubscriptionManager.GetByGatewayID(r.Context(), ev.GatewaySubscriptionID)
	if err != nil || sub == nil {
		return
	}
	if err := s.Producer.SendNotification(&broker.Notification{
		Kind:           kind,
		UserID:         sub.UserID,
		SubscriptionID: sub.ID,
		Message:        message,
		OccurredAt:     time.Now(),
	}); err != nil {
		s.Logger.Error("Unable to publish notification",
			zap.String("Kind", string(kind)),
			zap.String("SubscriptionID", sub.ID),
			zap.Error(err),
		)
	}
}

// Handler will return the webhook endpoint handler
func (s *Service) Handler() http.HandlerFunc {
	return s.handleEvent
}
