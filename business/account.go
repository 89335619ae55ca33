package business

import (
	"context"
	"fmt"

	"github.com/subscripper/subscripper/payment"
)

// AccountStore adapts Manager to the payment provisioner's view of a business
type AccountStore struct {
	m *Manager
}

var _ payment.BusinessStore = &AccountStore{}

// NewAccountStore returns the payment.BusinessStore backed by the businesses table
func NewAccountStore(m *Manager) (*AccountStore, error) {
	if m == nil {
		return nil, fmt.Errorf("nil Manager is invalid")
	}
	return &AccountStore{m: m}, nil
}

func toAccount(b *Business) *payment.BusinessAccount {
	if b == nil {
		return nil
	}
	return &payment.BusinessAccount{
		BusinessID:         b.ID,
		OwnerID:            b.OwnerID,
		Email:              b.Email,
		BusinessName:       b.Name,
		AccountID:          b.PaymentAccountID,
		OnboardingComplete: b.PaymentOnboardingComplete,
	}
}

func (s *AccountStore) AccountByID(ctx context.Context, businessID string) (*payment.BusinessAccount, error) {
	b, err := s.m.GetByID(ctx, businessID)
	if err != nil {
		return nil, err
	}
	return toAccount(b), nil
}

func (s *AccountStore) AccountByOwner(ctx context.Context, ownerID string) (*payment.BusinessAccount, error) {
	b, err := s.m.GetByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return toAccount(b), nil
}

func (s *AccountStore) SetPaymentAccount(ctx context.Context, businessID, accountID string) error {
	return s.m.SetPaymentAccount(ctx, businessID, accountID)
}

func (s *AccountStore) MarkOnboardingComplete(ctx context.Context, businessID string) error {
	return s.m.MarkOnboardingComplete(ctx, businessID)
}
