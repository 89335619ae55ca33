package business

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocation(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	b := &Business{Timezone: "Europe/London"}
	assert.Equal(t, london, b.Location())

	assert.Equal(t, time.Local, (&Business{}).Location(), "unset timezone falls back to the server zone")
	assert.Equal(t, time.Local, (&Business{Timezone: "Atlantis/Nowhere"}).Location(), "unloadable timezone falls back to the server zone")

	var nilBusiness *Business
	assert.Equal(t, time.Local, nilBusiness.Location())
}

func TestCanSell(t *testing.T) {
	approved := &Business{Status: StatusApproved, PaymentOnboardingComplete: true}
	assert.True(t, approved.CanSell())

	notOnboarded := &Business{Status: StatusApproved}
	assert.False(t, notOnboarded.CanSell(), "approval without payment onboarding cannot sell")

	pending := &Business{Status: StatusPendingApproval, PaymentOnboardingComplete: true}
	assert.False(t, pending.CanSell())

	var nilBusiness *Business
	assert.False(t, nilBusiness.CanSell())
}
