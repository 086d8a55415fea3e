package domain

import (
	"fmt"
	"time"
)

// DateLayout is the only accepted calendar date format.
const DateLayout = "2006-01-02"

// ParseDate parses a strict YYYY-MM-DD date in UTC. Inputs that parse but
// do not round-trip (e.g. "2024-1-5") are rejected.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil || t.Format(DateLayout) != s {
		return time.Time{}, fmt.Errorf("%w: %q is not YYYY-MM-DD", ErrInvalidDate, s)
	}
	return t, nil
}

// ExpandDates returns every calendar day from start to end inclusive.
func ExpandDates(start, end string) ([]time.Time, error) {
	from, err := ParseDate(start)
	if err != nil {
		return nil, err
	}
	to, err := ParseDate(end)
	if err != nil {
		return nil, err
	}
	if from.After(to) {
		return nil, fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, start, end)
	}

	days := make([]time.Time, 0, int(to.Sub(from).Hours()/24)+1)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days, nil
}
