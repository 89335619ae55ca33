package profile

import (
	"time"

	"github.com/subscripper/subscripper/auth"
)

// Profile describes a user of the marketplace
type Profile struct {
	ID                string           `json:"id" gorm:"primaryKey"`
	Email             string           `json:"email" gorm:"uniqueIndex"` // always stored lowercased
	Name              string           `json:"name"`
	Phone             string           `json:"phone,omitempty"`
	AccountType       auth.AccountType `json:"accountType"`
	GatewayCustomerID string           `json:"-" gorm:"index"` // Stripe Customer ID, created lazily on first subscribe
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}
