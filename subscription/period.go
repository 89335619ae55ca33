package subscription

import (
	"time"

	"github.com/subscripper/subscripper/product"
)

// ComputePeriodEnd returns the exclusive end of the allowance period that
// begins at start. Day and week periods are plain day arithmetic. Month
// periods land on the same day number in the following month, clamped to
// that month's last day when it is shorter, so Jan 31 rolls to Feb 28 (or
// Feb 29 in a leap year). The clock time and location of start are
// preserved in all cases.
func ComputePeriodEnd(start time.Time, period product.Period) time.Time {
	switch period {
	case product.PeriodDay:
		return start.AddDate(0, 0, 1)
	case product.PeriodWeek:
		return start.AddDate(0, 0, 7)
	case product.PeriodMonth:
		year, month, day := start.Date()
		hour, min, sec := start.Clock()
		// day 0 of month+2 normalizes to the last day of month+1
		lastDay := time.Date(year, month+2, 0, 0, 0, 0, 0, start.Location()).Day()
		if day > lastDay {
			day = lastDay
		}
		return time.Date(year, month+1, day, hour, min, sec, start.Nanosecond(), start.Location())
	}
	return start
}

// WithinPeriod reports whether t falls inside the subscription's current
// billing period, start inclusive and end exclusive.
func (s *Subscription) WithinPeriod(t time.Time) bool {
	return !t.Before(s.CurrentPeriodStart) && t.Before(s.CurrentPeriodEnd)
}
