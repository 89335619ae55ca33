package product

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Period is the custom type for a product's billing interval
type Period string

// Defining the billing intervals a product can be sold at
const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// Valid reports whether p is one of the defined periods
func (p Period) Valid() bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth:
		return true
	}
	return false
}

// BlackoutTime is a weekly window during which redemption is disallowed.
// Times are "HH:MM" in the business's local time, Day is a lowercase weekday.
type BlackoutTime struct {
	Day   string `json:"day"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// BlackoutTimes is the product's configured blackout windows, stored as JSONB
type BlackoutTimes []BlackoutTime

func (b *BlackoutTimes) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("Failed to unmarshal jsonb value: %s", value)
	}
	if bytes == nil {
		*b = make(BlackoutTimes, 0)
		return nil
	}
	return json.Unmarshal(bytes, &b)
}

func (b BlackoutTimes) Value() (driver.Value, error) {
	if b == nil {
		b = make(BlackoutTimes, 0)
	}
	return json.Marshal(b)
}

func (BlackoutTimes) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "mysql", "sqlite":
		return "JSON"
	case "postgres":
		return "JSONB"
	}
	return ""
}

// Contains reports whether t falls within any configured blackout window.
// A window ending before it starts wraps past midnight: 22:00 to 02:00 on
// monday blacks out monday's late evening and monday's small hours.
func (b BlackoutTimes) Contains(t time.Time) bool {
	day := strings.ToLower(t.Weekday().String())
	hm := t.Format("15:04")
	for _, w := range b {
		if !strings.EqualFold(w.Day, day) {
			continue
		}
		if w.Start <= w.End {
			if hm >= w.Start && hm < w.End {
				return true
			}
		} else {
			if hm >= w.Start || hm < w.End {
				return true
			}
		}
	}
	return false
}

// Product is a recurring allowance offer sold by a Business
type Product struct {
	ID                string        `json:"id" gorm:"primaryKey"`
	BusinessID        string        `json:"businessId" gorm:"index"`
	Name              string        `json:"name"`
	Description       string        `json:"description,omitempty"`
	ImageURL          string        `json:"imageUrl,omitempty"`
	ItemType          string        `json:"itemType"` // what one redemption hands over, e.g. "coffee"
	QuantityPerPeriod int           `json:"quantityPerPeriod"`
	Period            Period        `json:"period"`
	PricePence        int64         `json:"pricePence"`
	BlackoutTimes     BlackoutTimes `json:"blackoutTimes"`
	GatewayProductID  string        `json:"-" gorm:"index"` // Stripe Product ID
	GatewayPriceID    string        `json:"-"`              // Stripe Price ID
	IsActive          bool          `json:"isActive"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// Sellable reports whether the product can currently be subscribed to
func (p *Product) Sellable() bool {
	return p != nil && p.IsActive && len(p.GatewayPriceID) > 0
}
