package redemption

import (
	"time"
)

// Redemption is one consumed unit of a subscription's allowance. Rows are
// append-only: undoing stamps UndoneAt/UndoneBy rather than deleting, so
// the ledger stays a complete audit trail.
type Redemption struct {
	ID             string     `json:"id" gorm:"primaryKey"`
	SubscriptionID string     `json:"subscriptionId" gorm:"index"`
	ProductID      string     `json:"productId"`
	BusinessID     string     `json:"businessId" gorm:"index"`
	UserID         string     `json:"userId" gorm:"index"`
	ItemType       string     `json:"itemType"`
	RedeemedBy     string     `json:"redeemedBy,omitempty"`
	RedeemedAt     time.Time  `json:"redeemedAt"`
	UndoneAt       *time.Time `json:"undoneAt,omitempty"`
	UndoneBy       string     `json:"undoneBy,omitempty"`
}

// Counted reports whether the redemption still counts toward the
// subscription's allowance
func (r *Redemption) Counted() bool {
	return r.UndoneAt == nil
}
