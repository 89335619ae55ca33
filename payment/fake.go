package payment

import (
	"context"
	"fmt"
	"sync"
)

// FakeGateway is an in-memory gateway used when PAYMENT_DRIVER=fake and in
// tests. Subscriptions confirm synchronously, accounts verify immediately
// after one onboarding round trip.
type FakeGateway struct {
	mu sync.Mutex

	nextID    int
	accounts  map[string]*AccountStatus
	customers map[string]string // user id -> customer id
	cancelled map[string]bool

	CreatedProducts      []CreateProductOptions
	CreatedSubscriptions []CreateSubscriptionOptions
	AccountsCreated      int

	// AutoVerify marks newly created accounts as fully verified
	AutoVerify bool
}

var _ Processor = &FakeGateway{}
var _ ConnectGateway = &FakeGateway{}

// NewFakeGateway returns a gateway that never leaves the process
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		accounts:  make(map[string]*AccountStatus),
		customers: make(map[string]string),
		cancelled: make(map[string]bool),
	}
}

func (f *FakeGateway) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s_fake_%d", prefix, f.nextID)
}

func (f *FakeGateway) EnsureCustomer(ctx context.Context, opt CustomerOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.customers[opt.UserID]; ok {
		return existing, nil
	}
	id := f.id("cus")
	f.customers[opt.UserID] = id
	return id, nil
}

func (f *FakeGateway) CreateProduct(ctx context.Context, opt CreateProductOptions) (*ProductRefs, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreatedProducts = append(f.CreatedProducts, opt)
	return &ProductRefs{
		ProductID: f.id("prod"),
		PriceID:   f.id("price"),
	}, nil
}

func (f *FakeGateway) CreateSubscription(ctx context.Context, opt CreateSubscriptionOptions) (*GatewaySubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreatedSubscriptions = append(f.CreatedSubscriptions, opt)
	return &GatewaySubscription{
		ID:        f.id("sub"),
		Confirmed: true,
	}, nil
}

func (f *FakeGateway) CancelSubscription(ctx context.Context, gatewaySubscriptionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled[gatewaySubscriptionID] = true
	return nil
}

// Cancelled reports whether the given gateway subscription was cancelled
func (f *FakeGateway) Cancelled(gatewaySubscriptionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled[gatewaySubscriptionID]
}

func (f *FakeGateway) CreateAccount(ctx context.Context, opt CreateAccountOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AccountsCreated++
	id := f.id("acct")
	f.accounts[id] = &AccountStatus{
		DetailsSubmitted: f.AutoVerify,
		ChargesEnabled:   f.AutoVerify,
	}
	return id, nil
}

func (f *FakeGateway) CreateOnboardingLink(ctx context.Context, accountID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[accountID]; !ok {
		return "", &ProviderError{Op: "onboarding link creation", Message: "no such account: " + accountID}
	}
	return "https://onboarding.invalid/" + accountID, nil
}

func (f *FakeGateway) AccountStatus(ctx context.Context, accountID string) (*AccountStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.accounts[accountID]
	if !ok {
		return nil, &ProviderError{Op: "account status lookup", Message: "no such account: " + accountID}
	}
	return &AccountStatus{
		DetailsSubmitted: status.DetailsSubmitted,
		ChargesEnabled:   status.ChargesEnabled,
	}, nil
}

// Verify marks an account as having completed onboarding
func (f *FakeGateway) Verify(accountID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status, ok := f.accounts[accountID]; ok {
		status.DetailsSubmitted = true
		status.ChargesEnabled = true
	}
}
