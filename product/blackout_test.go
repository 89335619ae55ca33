package product

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// 2026-03-02 is a Monday
func monday(hhmm string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", "2026-03-02 "+hhmm)
	if err != nil {
		panic(err)
	}
	return t
}

func TestBlackoutContains(t *testing.T) {
	windows := BlackoutTimes{
		{Day: "monday", Start: "12:00", End: "14:00"},
	}

	assert.False(t, windows.Contains(monday("11:59")))
	assert.True(t, windows.Contains(monday("12:00")), "start is inclusive")
	assert.True(t, windows.Contains(monday("13:30")))
	assert.False(t, windows.Contains(monday("14:00")), "end is exclusive")

	// same clock time on a different day
	tuesday := monday("13:00").AddDate(0, 0, 1)
	assert.False(t, windows.Contains(tuesday))
}

func TestBlackoutContainsOvernightWindow(t *testing.T) {
	windows := BlackoutTimes{
		{Day: "monday", Start: "22:00", End: "02:00"},
	}

	assert.True(t, windows.Contains(monday("23:30")))
	assert.True(t, windows.Contains(monday("01:00")))
	assert.False(t, windows.Contains(monday("02:00")))
	assert.False(t, windows.Contains(monday("21:59")))
}

func TestBlackoutCaseInsensitiveDay(t *testing.T) {
	windows := BlackoutTimes{
		{Day: "Monday", Start: "09:00", End: "10:00"},
	}
	assert.True(t, windows.Contains(monday("09:30")))
}

func TestBlackoutEmpty(t *testing.T) {
	assert.False(t, BlackoutTimes{}.Contains(monday("12:00")))
	assert.False(t, BlackoutTimes(nil).Contains(monday("12:00")))
}

func TestPeriodValid(t *testing.T) {
	assert.True(t, PeriodDay.Valid())
	assert.True(t, PeriodWeek.Valid())
	assert.True(t, PeriodMonth.Valid())
	assert.False(t, Period("year").Valid())
	assert.False(t, Period("").Valid())
}
