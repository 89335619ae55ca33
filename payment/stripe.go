package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"go.uber.org/zap"
)

// StripeOptions contains the configuration for the Stripe-backed gateway
type StripeOptions struct {
	Client *client.API
	Logger *zap.Logger

	// Deep links the mobile app registers for Connect onboarding round trips
	OnboardingReturnURL  string
	OnboardingRefreshURL string
}

// StripeGateway implements Processor and ConnectGateway against Stripe
type StripeGateway struct {
	StripeOptions
}

var _ Processor = &StripeGateway{}
var _ ConnectGateway = &StripeGateway{}

// NewStripeGateway validates the configuration and returns the Stripe-backed gateway
func NewStripeGateway(option StripeOptions) (*StripeGateway, error) {
	if option.Client == nil {
		return nil, fmt.Errorf("nil Client is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if len(option.OnboardingReturnURL) == 0 {
		return nil, fmt.Errorf("empty OnboardingReturnURL is invalid")
	}
	if len(option.OnboardingRefreshURL) == 0 {
		return nil, fmt.Errorf("empty OnboardingRefreshURL is invalid")
	}
	return &StripeGateway{
		StripeOptions: option,
	}, nil
}

// providerErr preserves Stripe's human-readable message per the propagation policy
func providerErr(op string, err error) error {
	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		return &ProviderError{Op: op, Message: sErr.Msg}
	}
	return &ProviderError{Op: op, Message: err.Error()}
}

func (s *StripeGateway) EnsureCustomer(ctx context.Context, opt CustomerOptions) (string, error) {
	params := &stripe.CustomerParams{
		Params: stripe.Params{
			Context: ctx,
			Metadata: map[string]string{
				"user_id": opt.UserID,
			},
		},
		Email: stripe.String(opt.Email),
	}
	if len(opt.Name) > 0 {
		params.Name = stripe.String(opt.Name)
	}
	c, err := s.Client.Customers.New(params)
	if err != nil {
		return "", providerErr("customer creation", err)
	}
	return c.ID, nil
}

func (s *StripeGateway) CreateProduct(ctx context.Context, opt CreateProductOptions) (*ProductRefs, error) {
	prodParams := &stripe.ProductParams{
		Params: stripe.Params{
			Context: ctx,
			Metadata: map[string]string{
				"item_type": opt.ItemType,
			},
		},
		Active: stripe.Bool(true),
		Name:   stripe.String(opt.Name),
	}
	if len(opt.Description) > 0 {
		prodParams.Description = stripe.String(opt.Description)
	}
	stripeProduct, err := s.Client.Products.New(prodParams)
	if err != nil {
		return nil, providerErr("product creation", err)
	}

	priceParams := &stripe.PriceParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Active:     stripe.Bool(true),
		Currency:   stripe.String(string(stripe.CurrencyGBP)),
		UnitAmount: stripe.Int64(opt.PricePence),
		Product:    stripe.String(stripeProduct.ID),
		Recurring: &stripe.PriceRecurringParams{
			Interval:      stripe.String(opt.Interval),
			IntervalCount: stripe.Int64(1),
			UsageType:     stripe.String("licensed"),
		},
	}
	price, err := s.Client.Prices.New(priceParams)
	if err != nil {
		return nil, providerErr("price creation", err)
	}

	return &ProductRefs{
		ProductID: stripeProduct.ID,
		PriceID:   price.ID,
	}, nil
}

func (s *StripeGateway) CreateSubscription(ctx context.Context, opt CreateSubscriptionOptions) (*GatewaySubscription, error) {
	params := &stripe.SubscriptionParams{
		Params: stripe.Params{
			Context:  ctx,
			Metadata: opt.Metadata,
		},
		Customer: stripe.String(opt.CustomerID),
		Items: []*stripe.SubscriptionItemsParams{
			{
				Price: stripe.String(opt.PriceID),
			},
		},
		PaymentBehavior:       stripe.String("default_incomplete"),
		ApplicationFeePercent: stripe.Float64(opt.CommissionPercent),
		TransferData: &stripe.SubscriptionTransferDataParams{
			Destination: stripe.String(opt.DestinationAccountID),
		},
	}
	params.AddExpand("latest_invoice.payment_intent")

	sub, err := s.Client.Subscriptions.New(params)
	if err != nil {
		return nil, providerErr("subscription creation", err)
	}

	gs := &GatewaySubscription{
		ID:        sub.ID,
		Confirmed: sub.Status == stripe.SubscriptionStatusActive,
	}
	if sub.LatestInvoice != nil && sub.LatestInvoice.PaymentIntent != nil {
		gs.ClientSecret = sub.LatestInvoice.PaymentIntent.ClientSecret
	}
	return gs, nil
}

func (s *StripeGateway) CancelSubscription(ctx context.Context, gatewaySubscriptionID string) error {
	updateParams := &stripe.SubscriptionParams{
		Params: stripe.Params{
			Context: ctx,
		},
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	sub, err := s.Client.Subscriptions.Update(gatewaySubscriptionID, updateParams)
	if err != nil {
		return providerErr("subscription cancellation", err)
	}
	if sub.CancelAtPeriodEnd != true {
		return &ProviderError{Op: "subscription cancellation", Message: "gateway did not mark subscription as cancel at end of period"}
	}
	return nil
}

func (s *StripeGateway) CreateAccount(ctx context.Context, opt CreateAccountOptions) (string, error) {
	params := &stripe.AccountParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Type:         stripe.String(string(stripe.AccountTypeExpress)),
		Country:      stripe.String("GB"),
		Email:        stripe.String(opt.Email),
		BusinessType: stripe.String("company"),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{
				Requested: stripe.Bool(true),
			},
			Transfers: &stripe.AccountCapabilitiesTransfersParams{
				Requested: stripe.Bool(true),
			},
		},
		BusinessProfile: &stripe.AccountBusinessProfileParams{
			Name:               stripe.String(opt.BusinessName),
			ProductDescription: stripe.String("Local subscription services"),
		},
	}
	acct, err := s.Client.Account.New(params)
	if err != nil {
		return "", providerErr("connected account creation", err)
	}
	return acct.ID, nil
}

func (s *StripeGateway) CreateOnboardingLink(ctx context.Context, accountID string) (string, error) {
	params := &stripe.AccountLinkParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Account:    stripe.String(accountID),
		ReturnURL:  stripe.String(s.OnboardingReturnURL),
		RefreshURL: stripe.String(s.OnboardingRefreshURL),
		Type:       stripe.String("account_onboarding"),
	}
	link, err := s.Client.AccountLinks.New(params)
	if err != nil {
		return "", providerErr("onboarding link creation", err)
	}
	return link.URL, nil
}

func (s *StripeGateway) AccountStatus(ctx context.Context, accountID string) (*AccountStatus, error) {
	acct, err := s.Client.Account.GetByID(accountID, &stripe.AccountParams{
		Params: stripe.Params{
			Context: ctx,
		},
	})
	if err != nil {
		return nil, providerErr("account status lookup", err)
	}
	return &AccountStatus{
		DetailsSubmitted: acct.DetailsSubmitted,
		ChargesEnabled:   acct.ChargesEnabled,
	}, nil
}
