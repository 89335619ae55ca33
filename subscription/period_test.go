package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/subscripper/subscripper/product"
)

func TestComputePeriodEnd(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		start    time.Time
		period   product.Period
		expected time.Time
	}{
		{
			name:     "day adds one day",
			start:    time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
			period:   product.PeriodDay,
			expected: time.Date(2026, 3, 11, 9, 30, 0, 0, time.UTC),
		},
		{
			name:     "week adds seven days",
			start:    time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
			period:   product.PeriodWeek,
			expected: time.Date(2026, 3, 17, 9, 30, 0, 0, time.UTC),
		},
		{
			name:     "month keeps day number",
			start:    time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
			period:   product.PeriodMonth,
			expected: time.Date(2026, 4, 10, 9, 30, 0, 0, time.UTC),
		},
		{
			name:     "jan 31 clamps to feb 28",
			start:    time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC),
			period:   product.PeriodMonth,
			expected: time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC),
		},
		{
			name:     "jan 31 clamps to feb 29 in leap year",
			start:    time.Date(2028, 1, 31, 12, 0, 0, 0, time.UTC),
			period:   product.PeriodMonth,
			expected: time.Date(2028, 2, 29, 12, 0, 0, 0, time.UTC),
		},
		{
			name:     "mar 31 clamps to apr 30",
			start:    time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC),
			period:   product.PeriodMonth,
			expected: time.Date(2026, 4, 30, 23, 59, 59, 0, time.UTC),
		},
		{
			name:     "december rolls into january",
			start:    time.Date(2026, 12, 15, 8, 0, 0, 0, time.UTC),
			period:   product.PeriodMonth,
			expected: time.Date(2027, 1, 15, 8, 0, 0, 0, time.UTC),
		},
		{
			name:     "location is preserved",
			start:    time.Date(2026, 5, 31, 18, 45, 0, 0, london),
			period:   product.PeriodMonth,
			expected: time.Date(2026, 6, 30, 18, 45, 0, 0, london),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputePeriodEnd(tc.start, tc.period)
			assert.True(t, tc.expected.Equal(got), "expected %s, got %s", tc.expected, got)
			assert.Equal(t, tc.expected.Location(), got.Location())
		})
	}
}

func TestComputePeriodEndAlwaysAfterStart(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 366*2; i++ {
		day := start.AddDate(0, 0, i)
		for _, p := range []product.Period{product.PeriodDay, product.PeriodWeek, product.PeriodMonth} {
			end := ComputePeriodEnd(day, p)
			assert.True(t, end.After(day), "period %s starting %s must end after it, got %s", p, day, end)
		}
	}
}

func TestWithinPeriodHalfOpen(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sub := &Subscription{
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   start.AddDate(0, 1, 0),
	}

	assert.True(t, sub.WithinPeriod(start), "start is inclusive")
	assert.True(t, sub.WithinPeriod(sub.CurrentPeriodEnd.Add(-time.Second)))
	assert.False(t, sub.WithinPeriod(sub.CurrentPeriodEnd), "end is exclusive")
	assert.False(t, sub.WithinPeriod(start.Add(-time.Second)))
}
