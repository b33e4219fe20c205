package bookingclient

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestResolvePrimaryAnnotatesReservations(t *testing.T) {
	b := newMemBackend()
	b.reserve("2025-03-10", "10:00")
	r := newTestResolver(b, discardLogger())

	res := r.Resolve(context.Background(), testSession(b), "2025-03-10")
	if res.Source != SourcePrimary || res.Warning != "" {
		t.Fatalf("expected clean primary resolution, got %+v", res)
	}
	if len(res.Slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(res.Slots))
	}
	if res.Slots[0].Start.String() != "09:00" || res.Slots[0].End.String() != "09:30" || !res.Slots[0].Available {
		t.Fatalf("expected 09:00-09:30 available, got %+v", res.Slots[0])
	}
	if res.Slots[1].Start.String() != "10:00" || res.Slots[1].End.String() != "10:30" || res.Slots[1].Available {
		t.Fatalf("expected 10:00-10:30 taken, got %+v", res.Slots[1])
	}
	if b.reservedCalls != 0 {
		t.Fatalf("expected no fallback query, got %d", b.reservedCalls)
	}
}

func TestResolveFallsBackWhenPrimaryFails(t *testing.T) {
	b := newMemBackend()
	b.reserve("2025-03-10", "10:00")
	b.slotsErr = errDown
	var logs bytes.Buffer
	r := newTestResolver(b, bufferLogger(&logs))

	res := r.Resolve(context.Background(), testSession(b), "2025-03-10")
	if res.Source != SourceFallback {
		t.Fatalf("expected fallback, got %s", res.Source)
	}
	if res.Warning == "" || res.Err == nil {
		t.Fatalf("expected warning and recorded error, got %+v", res)
	}
	if len(res.Slots) != 2 || !res.Slots[0].Available || res.Slots[1].Available {
		t.Fatalf("expected [available, taken], got %+v", res.Slots)
	}
	if !strings.Contains(logs.String(), "connection refused") {
		t.Fatalf("expected primary error to be logged, got %q", logs.String())
	}
}

func TestResolveFailsOpen(t *testing.T) {
	b := newMemBackend()
	b.reserve("2025-03-10", "10:00")
	b.slotsErr = errDown
	b.reservedErr = errDown
	r := newTestResolver(b, discardLogger())

	res := r.Resolve(context.Background(), testSession(b), "2025-03-10")
	if res.Source != SourceFailOpen || res.Warning != WarningFailed {
		t.Fatalf("expected fail-open with warning, got %+v", res)
	}
	if len(res.Slots) != 2 || !res.Slots[0].Available || !res.Slots[1].Available {
		t.Fatalf("expected every slot available, got %+v", res.Slots)
	}

	r.FailOpen = false
	res = r.Resolve(context.Background(), testSession(b), "2025-03-10")
	if res.Source != SourceFailed || len(res.Slots) != 0 {
		t.Fatalf("expected no slots when fail-open is off, got %+v", res)
	}
}

func TestResolveIsIdempotentAndMatchesGenerator(t *testing.T) {
	b := newMemBackend()
	b.reserve("2025-03-10", "09:00")
	r := newTestResolver(b, discardLogger())

	first := r.Resolve(context.Background(), testSession(b), "2025-03-10")
	second := r.Resolve(context.Background(), testSession(b), "2025-03-10")
	if len(first.Slots) != len(second.Slots) {
		t.Fatalf("expected equal lengths, got %d and %d", len(first.Slots), len(second.Slots))
	}
	for i := range first.Slots {
		if first.Slots[i] != second.Slots[i] {
			t.Fatalf("expected identical slot %d, got %+v and %+v", i, first.Slots[i], second.Slots[i])
		}
	}

	b.slotsErr = errDown
	fallback := r.Resolve(context.Background(), testSession(b), "2025-03-10")
	for i := range first.Slots {
		if first.Slots[i] != fallback.Slots[i] {
			t.Fatalf("expected fallback to match primary at %d, got %+v and %+v", i, first.Slots[i], fallback.Slots[i])
		}
	}
}

func TestResolveFallbackSkipsIneligibleDates(t *testing.T) {
	b := newMemBackend()
	b.slotsErr = errDown
	r := newTestResolver(b, discardLogger())

	// 2025-03-11 is a Tuesday and 2025-02-24 a Monday before the test clock.
	for _, date := range []string{"2025-03-11", "2025-02-24", "not-a-date"} {
		res := r.Resolve(context.Background(), testSession(b), date)
		if res.Source != SourceFallback || len(res.Slots) != 0 {
			t.Fatalf("expected no slots for %s, got %+v", date, res)
		}
	}
	if b.reservedCalls != 0 {
		t.Fatalf("expected no reservation query for ineligible dates, got %d", b.reservedCalls)
	}

	b.reservedErr = errDown
	if res := r.Resolve(context.Background(), testSession(b), "2025-03-11"); len(res.Slots) != 0 {
		t.Fatalf("expected fail-open to respect eligibility, got %+v", res.Slots)
	}
}
