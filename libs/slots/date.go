package slots

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// ParseDate parses a calendar date (YYYY-MM-DD) as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("slots: invalid date %q: expected YYYY-MM-DD", s)
	}
	return d, nil
}

// Day truncates t to midnight of its calendar day in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Today returns midnight of the current day in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return Day(now.In(loc))
}

// IsPast reports whether the calendar day of date is before the calendar day of now,
// both evaluated in loc.
func IsPast(date, now time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).Before(Today(now, loc))
}
