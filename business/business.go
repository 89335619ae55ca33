package business

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Status is the custom type to define the current standing of a Business
type Status string

// Defining the administrative statuses of a Business
const (
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusActive          Status = "active"
	StatusSuspended       Status = "suspended"
	StatusRejected        Status = "rejected"
)

// DayHours describes the opening window for a single day
type DayHours struct {
	Open   string `json:"open"`
	Close  string `json:"close"`
	Closed bool   `json:"closed,omitempty"`
}

// Hours maps a lowercase day name to its opening window, stored as JSONB
type Hours map[string]DayHours

func (h *Hours) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("Failed to unmarshal jsonb value: %s", value)
	}
	if bytes == nil {
		*h = make(Hours)
		return nil
	}
	return json.Unmarshal(bytes, &h)
}

func (h Hours) Value() (driver.Value, error) {
	if h == nil {
		h = make(Hours)
	}
	return json.Marshal(h)
}

func (Hours) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "mysql", "sqlite":
		return "JSON"
	case "postgres":
		return "JSONB"
	}
	return ""
}

// Business describes a seller on the marketplace
type Business struct {
	ID                        string     `json:"id" gorm:"primaryKey"`
	OwnerID                   string     `json:"ownerId" gorm:"uniqueIndex"` // one business per owner, enforced by the store
	Name                      string     `json:"name"`
	Type                      string     `json:"type"`
	Description               string     `json:"description,omitempty"`
	Address                   string     `json:"address,omitempty"`
	City                      string     `json:"city,omitempty"`
	Postcode                  string     `json:"postcode,omitempty"`
	Email                     string     `json:"email,omitempty"`
	Phone                     string     `json:"phone,omitempty"`
	Website                   string     `json:"website,omitempty"`
	LogoURL                   string     `json:"logoUrl,omitempty"`
	Timezone                  string     `json:"timezone,omitempty"` // IANA name; blackout windows run on this clock
	OpeningHours              Hours      `json:"openingHours"`
	Status                    Status     `json:"status" gorm:"index"`
	RejectionReason           string     `json:"rejectionReason,omitempty"`
	ApprovedAt                *time.Time `json:"approvedAt,omitempty"`
	PaymentAccountID          string     `json:"paymentAccountId,omitempty" gorm:"index"` // Stripe Connect account ID
	PaymentOnboardingComplete bool       `json:"paymentOnboardingComplete"`
	CommissionRate            float64    `json:"commissionRate"` // platform percentage retained per payment
	CreatedAt                 time.Time  `json:"createdAt"`
	UpdatedAt                 time.Time  `json:"updatedAt"`
}

// Location resolves the business's timezone, falling back to the server's
// zone when unset or unloadable
func (b *Business) Location() *time.Location {
	if b == nil || b.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// CanSell reports whether the business may accept subscription payments
func (b *Business) CanSell() bool {
	if b == nil {
		return false
	}
	switch b.Status {
	case StatusApproved, StatusActive:
		return b.PaymentOnboardingComplete
	}
	return false
}
