package payment

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// BusinessAccount is the provisioner's view of a business row
type BusinessAccount struct {
	BusinessID         string
	OwnerID            string
	Email              string
	BusinessName       string
	AccountID          string
	OnboardingComplete bool
}

// BusinessStore is the persistence the provisioner needs. Implemented by
// business.AccountStore over the businesses table.
type BusinessStore interface {
	AccountByID(ctx context.Context, businessID string) (*BusinessAccount, error)
	AccountByOwner(ctx context.Context, ownerID string) (*BusinessAccount, error)
	SetPaymentAccount(ctx context.Context, businessID, accountID string) error
	MarkOnboardingComplete(ctx context.Context, businessID string) error
}

// ProvisionerOptions contains the configuration for the Connect account Provisioner
type ProvisionerOptions struct {
	Store   BusinessStore
	Gateway ConnectGateway
	Logger  *zap.Logger
}

// Provisioner creates and refreshes one connected account per business,
// idempotently
type Provisioner struct {
	ProvisionerOptions
}

// NewProvisioner validates the options and returns a Provisioner
func NewProvisioner(option ProvisionerOptions) (*Provisioner, error) {
	if option.Store == nil {
		return nil, fmt.Errorf("nil Store is invalid")
	}
	if option.Gateway == nil {
		return nil, fmt.Errorf("nil Gateway is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Provisioner{
		ProvisionerOptions: option,
	}, nil
}

// OnboardingState is returned to the client after ensure/refresh
type OnboardingState struct {
	Complete      bool   `json:"complete"`
	AccountID     string `json:"accountId"`
	OnboardingURL string `json:"onboardingUrl,omitempty"`
}

// EnsureAccount creates the connected account for the business if it has none
// and returns an onboarding link. The account id is persisted before the link
// is handed out: a link without a saved account id is unrecoverable state.
// When an account already exists, no duplicate is created and the call defers
// to RefreshOnboarding.
func (p *Provisioner) EnsureAccount(ctx context.Context, businessID string) (*OnboardingState, error) {
	acct, err := p.Store.AccountByID(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrBusinessNotFound
	}

	if len(acct.AccountID) > 0 {
		return p.RefreshOnboarding(ctx, businessID)
	}

	accountID, err := p.Gateway.CreateAccount(ctx, CreateAccountOptions{
		Email:        acct.Email,
		BusinessName: acct.BusinessName,
	})
	if err != nil {
		return nil, err
	}

	if err := p.Store.SetPaymentAccount(ctx, businessID, accountID); err != nil {
		p.Logger.Error("Created connected account but could not persist its id",
			zap.Error(err),
			zap.String("BusinessID", businessID),
			zap.String("AccountID", accountID),
		)
		return nil, err
	}

	url, err := p.Gateway.CreateOnboardingLink(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return &OnboardingState{
		Complete:      false,
		AccountID:     accountID,
		OnboardingURL: url,
	}, nil
}

// RefreshOnboarding checks the remote verification status. Complete accounts
// are flagged in the store and returned without a link; incomplete accounts
// get a fresh time-limited onboarding link.
func (p *Provisioner) RefreshOnboarding(ctx context.Context, businessID string) (*OnboardingState, error) {
	acct, err := p.Store.AccountByID(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrBusinessNotFound
	}
	if len(acct.AccountID) == 0 {
		return nil, ErrNoAccount
	}

	status, err := p.Gateway.AccountStatus(ctx, acct.AccountID)
	if err != nil {
		return nil, err
	}

	if status.DetailsSubmitted && status.ChargesEnabled {
		if !acct.OnboardingComplete {
			if err := p.Store.MarkOnboardingComplete(ctx, businessID); err != nil {
				return nil, err
			}
		}
		return &OnboardingState{
			Complete:  true,
			AccountID: acct.AccountID,
		}, nil
	}

	url, err := p.Gateway.CreateOnboardingLink(ctx, acct.AccountID)
	if err != nil {
		return nil, err
	}

	return &OnboardingState{
		Complete:      false,
		AccountID:     acct.AccountID,
		OnboardingURL: url,
	}, nil
}
