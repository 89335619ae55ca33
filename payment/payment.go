package payment

import (
	"context"
	"errors"
	"fmt"
)

// ProviderError surfaces a payment gateway failure with the provider's own
// message preserved for display
type ProviderError struct {
	Op      string
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment provider error during %s: %s", e.Op, e.Message)
}

// Defining the non-provider failure modes of this package
var (
	ErrBusinessNotFound = errors.New("business not found")
	ErrNoAccount        = errors.New("business has no connected account")
)

// Processor is the capability boundary to the payment gateway for recurring
// billing. The real implementation talks to Stripe; a fake is selected by
// configuration for test environments.
type Processor interface {
	EnsureCustomer(ctx context.Context, opt CustomerOptions) (string, error)
	CreateProduct(ctx context.Context, opt CreateProductOptions) (*ProductRefs, error)
	CreateSubscription(ctx context.Context, opt CreateSubscriptionOptions) (*GatewaySubscription, error)
	CancelSubscription(ctx context.Context, gatewaySubscriptionID string) error
}

// ConnectGateway covers the connected-account half of the gateway, used by the
// Provisioner
type ConnectGateway interface {
	CreateAccount(ctx context.Context, opt CreateAccountOptions) (string, error)
	CreateOnboardingLink(ctx context.Context, accountID string) (string, error)
	AccountStatus(ctx context.Context, accountID string) (*AccountStatus, error)
}

// CustomerOptions identifies the buyer on the gateway
type CustomerOptions struct {
	UserID string
	Email  string
	Name   string
}

// CreateProductOptions mirrors a subscription product onto the gateway
type CreateProductOptions struct {
	Name        string
	Description string
	ItemType    string
	PricePence  int64
	Interval    string // day, week or month
}

// ProductRefs holds the gateway identifiers for a mirrored product
type ProductRefs struct {
	ProductID string
	PriceID   string
}

// CreateSubscriptionOptions describes a destination-charge subscription with
// the platform commission retained
type CreateSubscriptionOptions struct {
	CustomerID           string
	PriceID              string
	DestinationAccountID string
	CommissionPercent    float64
	Metadata             map[string]string
}

// GatewaySubscription is the gateway's view of a created subscription
type GatewaySubscription struct {
	ID           string
	ClientSecret string // handed to the client to confirm the first payment
	Confirmed    bool   // true when the gateway confirmed payment synchronously
}

// CreateAccountOptions describes the connected account for a business
type CreateAccountOptions struct {
	Email        string
	BusinessName string
}

// AccountStatus is the verification state of a connected account
type AccountStatus struct {
	DetailsSubmitted bool
	ChargesEnabled   bool
}
