package slots

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Pattern is the recurring weekly template of a bookable product: which weekdays it can be
// booked on, the fixed start times offered on those days and the length of each call.
type Pattern struct {
	Weekdays        []time.Weekday
	Starts          []Clock
	DurationMinutes int
}

// ValidationError lists every problem found in a pattern.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "slots: invalid availability pattern: " + strings.Join(e.Problems, "; ")
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

func ParseWeekday(s string) (time.Weekday, error) {
	d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("slots: unknown weekday %q", s)
	}
	return d, nil
}

// ParsePattern builds a pattern from its wire form. Malformed times yield a *ParseError.
func ParsePattern(weekdays []string, starts []string, durationMinutes int) (Pattern, error) {
	p := Pattern{DurationMinutes: durationMinutes}
	for _, w := range weekdays {
		d, err := ParseWeekday(w)
		if err != nil {
			return Pattern{}, err
		}
		p.Weekdays = append(p.Weekdays, d)
	}
	for _, s := range starts {
		c, err := ParseClock(s)
		if err != nil {
			return Pattern{}, err
		}
		p.Starts = append(p.Starts, c)
	}
	return p, nil
}

// Validate enforces the rules a creator-saved pattern must satisfy. A slot whose end would
// fall on the next day is rejected here; Generate itself never fails on it.
func (p Pattern) Validate() error {
	var problems []string
	if len(p.Weekdays) == 0 {
		problems = append(problems, "at least one weekday is required")
	}
	seenDay := map[time.Weekday]bool{}
	for _, d := range p.Weekdays {
		if d < time.Sunday || d > time.Saturday {
			problems = append(problems, fmt.Sprintf("weekday %d out of range", int(d)))
			continue
		}
		if seenDay[d] {
			problems = append(problems, "duplicate weekday "+strings.ToLower(d.String()))
		}
		seenDay[d] = true
	}
	if p.DurationMinutes <= 0 || p.DurationMinutes > minutesPerDay {
		problems = append(problems, "call duration must be between 1 and 1440 minutes")
	}
	if len(p.Starts) == 0 {
		problems = append(problems, "at least one start time is required")
	}
	seenStart := map[Clock]bool{}
	for _, s := range p.Starts {
		if s < 0 || int(s) >= minutesPerDay {
			problems = append(problems, fmt.Sprintf("start time %d out of range", int(s)))
			continue
		}
		if seenStart[s] {
			problems = append(problems, "duplicate start time "+s.String())
		}
		seenStart[s] = true
		if p.DurationMinutes > 0 && int(s)+p.DurationMinutes > minutesPerDay {
			problems = append(problems, fmt.Sprintf("slot %s + %dm crosses midnight", s, p.DurationMinutes))
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func (p Pattern) AllowsWeekday(d time.Weekday) bool {
	for _, w := range p.Weekdays {
		if w == d {
			return true
		}
	}
	return false
}

func (p Pattern) HasStart(c Clock) bool {
	for _, s := range p.Starts {
		if s == c {
			return true
		}
	}
	return false
}

type patternJSON struct {
	AvailableWeekdays   []string `json:"available_weekdays"`
	TimeSlotStarts      []string `json:"time_slot_starts"`
	CallDurationMinutes int      `json:"call_duration_minutes"`
}

func (p Pattern) MarshalJSON() ([]byte, error) {
	out := patternJSON{CallDurationMinutes: p.DurationMinutes}
	for _, d := range p.Weekdays {
		out.AvailableWeekdays = append(out.AvailableWeekdays, strings.ToLower(d.String()))
	}
	for _, s := range p.Starts {
		out.TimeSlotStarts = append(out.TimeSlotStarts, s.String())
	}
	return json.Marshal(out)
}

func (p *Pattern) UnmarshalJSON(b []byte) error {
	var in patternJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	parsed, err := ParsePattern(in.AvailableWeekdays, in.TimeSlotStarts, in.CallDurationMinutes)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// WeekdayStrings returns the lowercase weekday names, in pattern order.
func (p Pattern) WeekdayStrings() []string {
	out := make([]string, 0, len(p.Weekdays))
	for _, d := range p.Weekdays {
		out = append(out, strings.ToLower(d.String()))
	}
	return out
}

// StartStrings returns the start times as HH:MM, in pattern order.
func (p Pattern) StartStrings() []string {
	out := make([]string, 0, len(p.Starts))
	for _, s := range p.Starts {
		out = append(out, s.String())
	}
	return out
}

// IsParseError reports whether err (or anything it wraps) is a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
