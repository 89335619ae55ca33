package external

import (
	stripe "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
)

// NewStripeClient returns an API client identifying the marketplace in the
// gateway's request logs
func NewStripeClient(key string) *client.API {
	stripe.SetAppInfo(&stripe.AppInfo{
		Name: "subscripper",
	})
	sc := &client.API{}
	sc.Init(key, nil)
	return sc
}
