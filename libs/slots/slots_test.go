package slots

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	c, err := ParseClock("09:05")
	if err != nil {
		t.Fatalf("ParseClock failed: %v", err)
	}
	if c.Hour() != 9 || c.Minute() != 5 || c.String() != "09:05" {
		t.Fatalf("unexpected clock %v", c)
	}
	if c, err := ParseClock("9:30"); err != nil || c.String() != "09:30" {
		t.Fatalf("expected single digit hour to parse, got %v (%v)", c, err)
	}
	for _, bad := range []string{"", "24:00", "12:60", "1230", "ab:cd", "12:5", "123:00", "+9:30", "-0:30", "09:+5", " 9:3 "} {
		_, err := ParseClock(bad)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("expected ParseError for %q, got %v", bad, err)
		}
	}
}

// Slots come out in configured order, each ending duration minutes after its start.
func TestGenerateMondayPattern(t *testing.T) {
	p, err := ParsePattern([]string{"Monday"}, []string{"09:00", "10:00"}, 30)
	if err != nil {
		t.Fatalf("ParsePattern failed: %v", err)
	}
	got := Generate(p)
	if len(got) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(got))
	}
	if got[0].Start.String() != "09:00" || got[0].End.String() != "09:30" {
		t.Fatalf("unexpected first slot %+v", got[0])
	}
	if got[1].Start.String() != "10:00" || got[1].End.String() != "10:30" {
		t.Fatalf("unexpected second slot %+v", got[1])
	}
}

func TestGeneratePreservesOrderAndDuration(t *testing.T) {
	p := Pattern{
		Weekdays:        []time.Weekday{time.Tuesday},
		Starts:          []Clock{MustParseClock("16:00"), MustParseClock("08:15"), MustParseClock("12:50")},
		DurationMinutes: 45,
	}
	got := Generate(p)
	if len(got) != len(p.Starts) {
		t.Fatalf("expected %d slots, got %d", len(p.Starts), len(got))
	}
	for i, c := range got {
		if c.Start != p.Starts[i] {
			t.Fatalf("slot %d: order not preserved, got %s want %s", i, c.Start, p.Starts[i])
		}
		diff := (int(c.End) - int(c.Start) + minutesPerDay) % minutesPerDay
		if diff != p.DurationMinutes {
			t.Fatalf("slot %d: expected duration %d, got %d", i, p.DurationMinutes, diff)
		}
	}
	if got[2].End.String() != "13:35" {
		t.Fatalf("expected minutes to carry into hours, got %s", got[2].End)
	}

	again := Generate(p)
	for i := range got {
		if got[i] != again[i] {
			t.Fatal("Generate must be deterministic")
		}
	}
}

func TestGenerateWrapsPastMidnight(t *testing.T) {
	p := Pattern{Starts: []Clock{MustParseClock("23:45")}, DurationMinutes: 30}
	got := Generate(p)
	if got[0].End.String() != "00:15" {
		t.Fatalf("expected wrapped end 00:15, got %s", got[0].End)
	}
}

func TestValidate(t *testing.T) {
	ok := Pattern{Weekdays: []time.Weekday{time.Monday}, Starts: []Clock{MustParseClock("09:00")}, DurationMinutes: 30}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid pattern, got %v", err)
	}

	bad := Pattern{
		Weekdays:        []time.Weekday{time.Monday, time.Monday},
		Starts:          []Clock{MustParseClock("23:45"), MustParseClock("23:45")},
		DurationMinutes: 30,
	}
	err := bad.Validate()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(ve.Problems) != 4 {
		t.Fatalf("expected 4 problems (dup weekday, dup start, 2x midnight), got %v", ve.Problems)
	}

	if err := (Pattern{}).Validate(); err == nil {
		t.Fatal("expected empty pattern to be invalid")
	}
}

func TestAnnotate(t *testing.T) {
	cands := Generate(Pattern{Starts: []Clock{MustParseClock("09:00"), MustParseClock("10:00")}, DurationMinutes: 30})
	got := Annotate(cands, []Clock{MustParseClock("10:00")})
	if len(got) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(got))
	}
	if !got[0].Available || got[1].Available {
		t.Fatalf("unexpected availability %+v", got)
	}
	for i := range got {
		if got[i].Start != cands[i].Start || got[i].End != cands[i].End {
			t.Fatalf("annotation must be 1:1 with candidates")
		}
	}
	for _, a := range AllAvailable(cands) {
		if !a.Available {
			t.Fatal("expected all slots available")
		}
	}
}

func TestPatternJSON(t *testing.T) {
	var p Pattern
	raw := `{"available_weekdays":["monday","wed"],"time_slot_starts":["09:00","14:30"],"call_duration_minutes":60}`
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !p.AllowsWeekday(time.Wednesday) || p.AllowsWeekday(time.Friday) {
		t.Fatalf("unexpected weekdays %v", p.Weekdays)
	}
	if !p.HasStart(MustParseClock("14:30")) {
		t.Fatal("expected 14:30 start")
	}
	out, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"available_weekdays":["monday","wednesday"],"time_slot_starts":["09:00","14:30"],"call_duration_minutes":60}`
	if string(out) != want {
		t.Fatalf("unexpected json %s", out)
	}

	if err := json.Unmarshal([]byte(`{"time_slot_starts":["9h"]}`), &p); !IsParseError(err) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestIsPast(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 02:00 UTC on March 3 is still March 2 in New York.
	now := time.Date(2026, 3, 3, 2, 0, 0, 0, time.UTC)
	march2, _ := ParseDate("2026-03-02", loc)
	march1, _ := ParseDate("2026-03-01", loc)
	if IsPast(march2, now, loc) {
		t.Fatal("March 2 is today in the store zone")
	}
	if !IsPast(march1, now, loc) {
		t.Fatal("March 1 is in the past")
	}
}
