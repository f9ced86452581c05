package core

import (
	"fmt"
	"time"
)

// Month identifies a calendar month in a location.
type Month struct {
	Year     int
	Month    time.Month
	Location *time.Location
}

// MonthOf returns the month containing t, in t's location.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month(), Location: t.Location()}
}

// ParseMonth parses "YYYY-MM" in the local time zone.
func ParseMonth(s string) (Month, error) {
	t, err := time.ParseInLocation("2006-01", s, time.Local)
	if err != nil {
		return Month{}, fmt.Errorf("%w %q: expected YYYY-MM", ErrInvalidMonth, s)
	}
	return MonthOf(t), nil
}

// Range returns the first instant of the month and 23:59:59 of its last day.
// The upper bound has second granularity: 23:59:59.5 falls outside.
func (m Month) Range() (start, end time.Time) {
	loc := m.Location
	if loc == nil {
		loc = time.Local
	}
	start = time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, loc)
	lastDay := start.AddDate(0, 1, -1)
	end = time.Date(lastDay.Year(), lastDay.Month(), lastDay.Day(), 23, 59, 59, 0, loc)
	return start, end
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}
