package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type memoryStore struct {
	accounts map[string]*BusinessAccount
}

func newMemoryStore(accounts ...*BusinessAccount) *memoryStore {
	s := &memoryStore{accounts: make(map[string]*BusinessAccount)}
	for _, a := range accounts {
		s.accounts[a.BusinessID] = a
	}
	return s
}

func (s *memoryStore) AccountByID(ctx context.Context, businessID string) (*BusinessAccount, error) {
	return s.accounts[businessID], nil
}

func (s *memoryStore) AccountByOwner(ctx context.Context, ownerID string) (*BusinessAccount, error) {
	for _, a := range s.accounts {
		if a.OwnerID == ownerID {
			return a, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) SetPaymentAccount(ctx context.Context, businessID, accountID string) error {
	s.accounts[businessID].AccountID = accountID
	return nil
}

func (s *memoryStore) MarkOnboardingComplete(ctx context.Context, businessID string) error {
	s.accounts[businessID].OnboardingComplete = true
	return nil
}

func newTestProvisioner(t *testing.T, store BusinessStore, gateway ConnectGateway) *Provisioner {
	p, err := NewProvisioner(ProvisionerOptions{
		Store:   store,
		Gateway: gateway,
		Logger:  zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return p
}

func TestEnsureAccountCreatesOnce(t *testing.T) {
	store := newMemoryStore(&BusinessAccount{
		BusinessID:   "biz-1",
		OwnerID:      "owner-1",
		Email:        "owner@example.com",
		BusinessName: "Corner Coffee",
	})
	gateway := NewFakeGateway()
	p := newTestProvisioner(t, store, gateway)

	first, err := p.EnsureAccount(context.Background(), "biz-1")
	require.NoError(t, err)
	assert.False(t, first.Complete)
	assert.NotEmpty(t, first.AccountID)
	assert.NotEmpty(t, first.OnboardingURL)
	assert.Equal(t, first.AccountID, store.accounts["biz-1"].AccountID, "account id persisted before the link is returned")

	second, err := p.EnsureAccount(context.Background(), "biz-1")
	require.NoError(t, err)
	assert.Equal(t, first.AccountID, second.AccountID, "existing account is reused")
	assert.Equal(t, 1, gateway.AccountsCreated, "exactly one remote account created")
}

func TestEnsureAccountBusinessNotFound(t *testing.T) {
	p := newTestProvisioner(t, newMemoryStore(), NewFakeGateway())

	_, err := p.EnsureAccount(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrBusinessNotFound)
}

func TestRefreshOnboardingWithoutAccount(t *testing.T) {
	store := newMemoryStore(&BusinessAccount{BusinessID: "biz-1"})
	p := newTestProvisioner(t, store, NewFakeGateway())

	_, err := p.RefreshOnboarding(context.Background(), "biz-1")
	assert.ErrorIs(t, err, ErrNoAccount)
}

func TestRefreshOnboardingIncompleteReturnsFreshLink(t *testing.T) {
	store := newMemoryStore(&BusinessAccount{
		BusinessID:   "biz-1",
		Email:        "owner@example.com",
		BusinessName: "Corner Coffee",
	})
	gateway := NewFakeGateway()
	p := newTestProvisioner(t, store, gateway)

	created, err := p.EnsureAccount(context.Background(), "biz-1")
	require.NoError(t, err)

	state, err := p.RefreshOnboarding(context.Background(), "biz-1")
	require.NoError(t, err)
	assert.False(t, state.Complete)
	assert.Equal(t, created.AccountID, state.AccountID)
	assert.NotEmpty(t, state.OnboardingURL)
	assert.False(t, store.accounts["biz-1"].OnboardingComplete)
}

func TestRefreshOnboardingCompletePersistsFlag(t *testing.T) {
	store := newMemoryStore(&BusinessAccount{
		BusinessID:   "biz-1",
		Email:        "owner@example.com",
		BusinessName: "Corner Coffee",
	})
	gateway := NewFakeGateway()
	p := newTestProvisioner(t, store, gateway)

	created, err := p.EnsureAccount(context.Background(), "biz-1")
	require.NoError(t, err)

	gateway.Verify(created.AccountID)

	state, err := p.RefreshOnboarding(context.Background(), "biz-1")
	require.NoError(t, err)
	assert.True(t, state.Complete)
	assert.Empty(t, state.OnboardingURL, "no link once onboarding is complete")
	assert.True(t, store.accounts["biz-1"].OnboardingComplete)

	// ensure after completion defers to refresh and still creates nothing
	again, err := p.EnsureAccount(context.Background(), "biz-1")
	require.NoError(t, err)
	assert.True(t, again.Complete)
	assert.Equal(t, 1, gateway.AccountsCreated)
}
