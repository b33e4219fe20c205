package slots

import (
	"fmt"
	"strconv"
	"strings"
)

const minutesPerDay = 24 * 60

// Clock is a wall-clock time of day at minute precision, stored as minutes since midnight.
// It carries no date and no time zone; both come from the booking date and the store.
type Clock int

// ParseError reports a malformed HH:MM value.
type ParseError struct {
	Value string
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("slots: invalid time %q: %s", e.Value, e.Msg)
}

// ParseClock parses a 24-hour "HH:MM" string. Single-digit hours ("9:30") are accepted.
func ParseClock(s string) (Clock, error) {
	raw := strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(raw, ":")
	if !ok || len(mm) != 2 || len(hh) == 0 || len(hh) > 2 || !allDigits(hh) || !allDigits(mm) {
		return 0, &ParseError{Value: s, Msg: "expected HH:MM"}
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, &ParseError{Value: s, Msg: "hour must be 00-23"}
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, &ParseError{Value: s, Msg: "minute must be 00-59"}
	}
	return Clock(h*60 + m), nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// MustParseClock panics on malformed input. Intended for tests and constants.
func MustParseClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) Hour() int   { return int(c.normalize()) / 60 }
func (c Clock) Minute() int { return int(c.normalize()) % 60 }

// Add returns c shifted by minutes, wrapped into a single day.
func (c Clock) Add(minutes int) Clock {
	return Clock(int(c) + minutes).normalize()
}

func (c Clock) normalize() Clock {
	n := int(c) % minutesPerDay
	if n < 0 {
		n += minutesPerDay
	}
	return Clock(n)
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
