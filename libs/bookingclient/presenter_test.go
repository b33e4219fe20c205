package bookingclient

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestPresenter(b *memBackend, token string) *Presenter {
	session := &BookingSession{ProductID: "p1", Pattern: b.pattern, Location: time.UTC, Token: token}
	p := NewPresenter(session, newTestResolver(b, discardLogger()), NewCommitter(b, discardLogger()), discardLogger())
	p.now = func() time.Time { return testNow }
	p.month = firstOfMonth(testNow)
	return p
}

func TestSelectDateRejectsIneligibleDates(t *testing.T) {
	b := newMemBackend()
	p := newTestPresenter(b, "valid")

	for _, d := range []string{"2025-02-24", "2025-03-04", "2025-03-01"} {
		if err := p.SelectDate(context.Background(), mustDate(d)); !errors.Is(err, ErrNotSelectable) {
			t.Fatalf("expected %s to be unselectable, got %v", d, err)
		}
	}
	if v := p.View(); v.State != StateIdle || v.Date != "" {
		t.Fatalf("expected presenter untouched, got %+v", v)
	}
	if b.calls() != 0 {
		t.Fatalf("expected no resolves, got %d", b.calls())
	}
}

func TestSelectDateLoadsAndCachesSlots(t *testing.T) {
	b := newMemBackend()
	b.reserve("2025-03-10", "10:00")
	p := newTestPresenter(b, "valid")

	if err := p.SelectDate(context.Background(), mustDate("2025-03-10")); err != nil {
		t.Fatalf("select date: %v", err)
	}
	v := p.View()
	if v.State != StateDateSelected || v.Date != "2025-03-10" || v.Loading {
		t.Fatalf("unexpected view %+v", v)
	}
	if len(v.Slots) != 2 || !v.Slots[0].Available || v.Slots[1].Available {
		t.Fatalf("expected [available, taken], got %+v", v.Slots)
	}

	if err := p.SelectDate(context.Background(), mustDate("2025-03-10")); err != nil {
		t.Fatalf("reselect date: %v", err)
	}
	if b.calls() != 1 {
		t.Fatalf("expected cached slots to be reused, got %d calls", b.calls())
	}
}

func TestSelectSlotOnlyAcceptsAvailableSlots(t *testing.T) {
	b := newMemBackend()
	b.reserve("2025-03-10", "10:00")
	p := newTestPresenter(b, "valid")

	if err := p.SelectSlot("09:00"); !errors.Is(err, ErrWrongState) {
		t.Fatalf("expected wrong state before a date, got %v", err)
	}
	_ = p.SelectDate(context.Background(), mustDate("2025-03-10"))
	if err := p.SelectSlot("10:00"); !errors.Is(err, ErrNotSelectable) {
		t.Fatalf("expected taken slot to be rejected, got %v", err)
	}
	if err := p.SelectSlot("11:00"); !errors.Is(err, ErrNotSelectable) {
		t.Fatalf("expected unknown slot to be rejected, got %v", err)
	}
	if err := p.SelectSlot("09:00"); err != nil {
		t.Fatalf("select slot: %v", err)
	}
	if v := p.View(); v.State != StateSlotSelected || v.Slot != "09:00" {
		t.Fatalf("unexpected view %+v", v)
	}
}

func TestConfirmWithoutSessionStaysPut(t *testing.T) {
	b := newMemBackend()
	p := newTestPresenter(b, "")
	_ = p.SelectDate(context.Background(), mustDate("2025-03-10"))
	_ = p.SelectSlot("09:00")

	err := p.Confirm()
	if KindOf(err) != KindNotAuthenticated {
		t.Fatalf("expected not authenticated, got %v", err)
	}
	v := p.View()
	if v.State != StateSlotSelected || v.Slot != "09:00" {
		t.Fatalf("expected selection kept, got %+v", v)
	}
	if v.Error == nil || v.Error.Kind != KindNotAuthenticated {
		t.Fatalf("expected actionable error in view, got %+v", v.Error)
	}
	if _, err := p.Submit(context.Background()); !errors.Is(err, ErrWrongState) {
		t.Fatalf("expected submit to be refused, got %v", err)
	}
	if b.createCalls != 0 {
		t.Fatalf("expected no commit, got %d", b.createCalls)
	}

	p.SetToken("valid")
	if err := p.Confirm(); err != nil {
		t.Fatalf("expected confirm after sign in, got %v", err)
	}
}

func TestSubmitSuccessRefreshesAndClearsSlot(t *testing.T) {
	b := newMemBackend()
	p := newTestPresenter(b, "valid")
	_ = p.SelectDate(context.Background(), mustDate("2025-03-10"))
	_ = p.SelectSlot("09:00")
	p.SetNotes("first call")
	if err := p.Confirm(); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	booking, err := p.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	v := p.View()
	if v.State != StateSuccess || v.Booking == nil || v.Booking.ReservationID != booking.ReservationID {
		t.Fatalf("unexpected view %+v", v)
	}
	if v.Date != "2025-03-10" || v.Slot != "" || v.Notes != "" {
		t.Fatalf("expected date kept and slot/notes cleared, got %+v", v)
	}
	if v.Slots[0].Available {
		t.Fatalf("expected 09:00 taken after refresh")
	}
	if b.calls() != 2 {
		t.Fatalf("expected one refresh after success, got %d calls", b.calls())
	}
}

func TestSubmitConflictKeepsSelection(t *testing.T) {
	b := newMemBackend()
	p := newTestPresenter(b, "valid")
	_ = p.SelectDate(context.Background(), mustDate("2025-03-10"))
	_ = p.SelectSlot("09:00")
	p.SetNotes("hello")
	_ = p.Confirm()

	b.reserve("2025-03-10", "09:00")
	_, err := p.Submit(context.Background())
	if KindOf(err) != KindSlotConflict {
		t.Fatalf("expected slot conflict, got %v", err)
	}
	v := p.View()
	if v.State != StateError || v.Slot != "09:00" || v.Notes != "hello" {
		t.Fatalf("expected selection preserved, got %+v", v)
	}
	if v.Error == nil || v.Error.Message != "That slot was just booked. Pick another time." {
		t.Fatalf("expected server message verbatim, got %+v", v.Error)
	}
	if v.Slots[0].Available {
		t.Fatalf("expected availability re-resolved after conflict")
	}
	if err := p.SelectSlot("10:00"); err != nil {
		t.Fatalf("expected to pick another slot, got %v", err)
	}
}

func TestTransientRetryReusesIdempotencyKey(t *testing.T) {
	b := newMemBackend()
	p := newTestPresenter(b, "valid")
	_ = p.SelectDate(context.Background(), mustDate("2025-03-10"))
	_ = p.SelectSlot("09:00")
	_ = p.Confirm()

	b.createErr = errDown
	if _, err := p.Submit(context.Background()); KindOf(err) != KindTransient {
		t.Fatalf("expected transient error, got %v", err)
	}
	firstKey := b.lastKey

	b.createErr = nil
	if err := p.Confirm(); err != nil {
		t.Fatalf("confirm after error: %v", err)
	}
	if _, err := p.Submit(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if b.lastKey != firstKey {
		t.Fatalf("expected key %q to be reused, got %q", firstKey, b.lastKey)
	}
}

func TestMonthNavigationKeepsSelection(t *testing.T) {
	b := newMemBackend()
	p := newTestPresenter(b, "valid")
	_ = p.SelectDate(context.Background(), mustDate("2025-03-10"))
	_ = p.SelectSlot("09:00")

	p.NextMonth()
	p.NextMonth()
	v := p.View()
	if v.Month.Month() != time.May {
		t.Fatalf("expected May, got %s", v.Month.Month())
	}
	if v.Date != "2025-03-10" || v.Slot != "09:00" || v.State != StateSlotSelected {
		t.Fatalf("expected selection to survive navigation, got %+v", v)
	}
	p.PrevMonth()
	if got := p.View().Month.Month(); got != time.April {
		t.Fatalf("expected April, got %s", got)
	}
}

func TestCalendarDaysMarksSelectableMondays(t *testing.T) {
	b := newMemBackend()
	p := newTestPresenter(b, "valid")
	_ = p.SelectDate(context.Background(), mustDate("2025-03-10"))

	days := p.CalendarDays()
	if len(days) != 31 {
		t.Fatalf("expected 31 days in March, got %d", len(days))
	}
	var selectable []int
	for _, d := range days {
		if d.Selectable {
			selectable = append(selectable, d.Date.Day())
		}
		if d.Selected != (d.Date.Day() == 10) {
			t.Fatalf("unexpected selected flag on %s", d.Date)
		}
	}
	want := []int{3, 10, 17, 24, 31}
	if len(selectable) != len(want) {
		t.Fatalf("expected %v, got %v", want, selectable)
	}
	for i := range want {
		if selectable[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, selectable)
		}
	}
}

func TestStaleResolveIsDiscarded(t *testing.T) {
	b := newMemBackend()
	started := make(chan struct{})
	release := make(chan struct{})
	b.slotsHook = func(call int, _ string) {
		if call == 1 {
			close(started)
			<-release
		}
	}
	var logs bytes.Buffer
	session := &BookingSession{ProductID: "p1", Pattern: b.pattern, Location: time.UTC, Token: "valid"}
	p := NewPresenter(session, newTestResolver(b, discardLogger()), NewCommitter(b, discardLogger()), bufferLogger(&logs))
	p.now = func() time.Time { return testNow }

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.SelectDate(context.Background(), mustDate("2025-03-10"))
	}()
	<-started

	if v := p.View(); !v.Loading || v.State != StateDateSelected {
		t.Fatalf("expected loading state, got %+v", v)
	}
	// A second selection of the same date while loading must not start another call.
	if err := p.SelectDate(context.Background(), mustDate("2025-03-10")); err != nil {
		t.Fatalf("reselect: %v", err)
	}
	if b.calls() != 1 {
		t.Fatalf("expected one in-flight call, got %d", b.calls())
	}

	b.reserve("2025-03-10", "09:00")
	if err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	close(release)
	<-done

	v := p.View()
	if v.Loading {
		t.Fatalf("expected loading to finish")
	}
	if v.Slots[0].Available {
		t.Fatalf("expected the newer response to win, got %+v", v.Slots)
	}
	if !strings.Contains(logs.String(), "discarding stale slot response") {
		t.Fatalf("expected stale discard to be logged, got %q", logs.String())
	}
}

func TestDegradedSlotsAreResolvedAgain(t *testing.T) {
	b := newMemBackend()
	b.reserve("2025-03-10", "10:00")
	b.slotsErr = errDown
	b.reservedErr = errDown
	p := newTestPresenter(b, "valid")

	_ = p.SelectDate(context.Background(), mustDate("2025-03-10"))
	v := p.View()
	if v.Warning != WarningFailed || len(v.Slots) != 2 || !v.Slots[1].Available {
		t.Fatalf("expected fail-open slots with a warning, got %+v", v)
	}

	b.mu.Lock()
	b.slotsErr, b.reservedErr = nil, nil
	b.mu.Unlock()
	_ = p.SelectDate(context.Background(), mustDate("2025-03-17"))
	_ = p.SelectDate(context.Background(), mustDate("2025-03-10"))

	v = p.View()
	if v.Warning != "" || v.Slots[1].Available {
		t.Fatalf("expected a fresh answer once the backend recovered, got %+v", v)
	}
	if err := p.SelectSlot("10:00"); !errors.Is(err, ErrNotSelectable) {
		t.Fatalf("expected the reserved slot to be unselectable, got %v", err)
	}
	if b.calls() != 3 {
		t.Fatalf("expected three slot queries, got %d", b.calls())
	}

	_ = p.SelectDate(context.Background(), mustDate("2025-03-10"))
	if b.calls() != 3 {
		t.Fatalf("expected the clean answer to be cached, got %d calls", b.calls())
	}
}
