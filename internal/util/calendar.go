package util

import (
	"fmt"
	"math"
	"time"
)

// DateLayout is the calendar-date layout used in configs, flags and JSON.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}

// Truncate drops the time-of-day component and converts to UTC.
func Truncate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays shifts a calendar date by n days.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// DaysBetween returns the number of whole calendar days from start to end,
// rounded up and always non-negative.
func DaysBetween(start, end time.Time) int {
	d := end.Sub(start)
	if d < 0 {
		d = -d
	}
	return int(math.Ceil(d.Hours() / 24))
}
