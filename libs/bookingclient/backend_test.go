package bookingclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/storefront/libs/slots"
)

var errDown = errors.New("connection refused")

// memBackend behaves like the booking service: it owns the reservations and rejects a second
// booking of the same slot.
type memBackend struct {
	mu       sync.Mutex
	pattern  slots.Pattern
	reserved map[string][]slots.Clock
	keys     map[string]Booking

	slotsErr    error
	reservedErr error
	createErr   error
	// slotsHook runs inside each GetAvailableSlots call, outside the lock.
	slotsHook func(call int, date string)

	slotCalls     int
	reservedCalls int
	createCalls   int
	lastKey       string
}

func newMemBackend() *memBackend {
	return &memBackend{
		pattern:  testPattern(),
		reserved: make(map[string][]slots.Clock),
		keys:     make(map[string]Booking),
	}
}

func testPattern() slots.Pattern {
	p, err := slots.ParsePattern([]string{"Monday"}, []string{"09:00", "10:00"}, 30)
	if err != nil {
		panic(err)
	}
	return p
}

func (b *memBackend) GetAvailableSlots(_ context.Context, _ string, date string) ([]slots.Annotated, error) {
	b.mu.Lock()
	b.slotCalls++
	call := b.slotCalls
	hook := b.slotsHook
	err := b.slotsErr
	out := slots.Annotate(slots.Generate(b.pattern), b.reserved[date])
	b.mu.Unlock()

	// The answer is computed before the hook runs so a delayed response carries old data.
	if hook != nil {
		hook(call, date)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *memBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.slotCalls
}

func (b *memBackend) ListReservedStarts(_ context.Context, _ string, date string) ([]slots.Clock, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reservedCalls++
	if b.reservedErr != nil {
		return nil, b.reservedErr
	}
	return append([]slots.Clock(nil), b.reserved[date]...), nil
}

func (b *memBackend) CreateBooking(_ context.Context, token string, req BookingRequest) (Booking, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.createCalls++
	b.lastKey = req.IdempotencyKey
	if b.createErr != nil {
		return Booking{}, b.createErr
	}
	if token != "valid" {
		return Booking{}, &APIError{Status: http.StatusUnauthorized, Code: "not_authenticated", Message: "session is invalid or expired"}
	}
	if prev, ok := b.keys[req.IdempotencyKey]; ok {
		prev.Replayed = true
		return prev, nil
	}
	start, err := slots.ParseClock(req.StartTime)
	if err != nil || !b.pattern.HasStart(start) {
		return Booking{}, &APIError{Status: http.StatusBadRequest, Code: "validation_error", Message: "start_time: not offered on this date"}
	}
	for _, r := range b.reserved[req.Date] {
		if r == start {
			return Booking{}, &APIError{Status: http.StatusConflict, Code: "slot_conflict", Message: "That slot was just booked. Pick another time."}
		}
	}
	b.reserved[req.Date] = append(b.reserved[req.Date], start)
	out := Booking{ReservationID: uuid.NewString(), Status: "confirmed"}
	b.keys[req.IdempotencyKey] = out
	return out, nil
}

func (b *memBackend) GetProduct(_ context.Context, productID string) (Product, error) {
	return Product{ID: productID, Pattern: b.pattern, Location: time.UTC}, nil
}

func (b *memBackend) reserve(date, start string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reserved[date] = append(b.reserved[date], slots.MustParseClock(start))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// 2025-03-01 is a Saturday; 2025-03-03 and 2025-03-10 are Mondays.
var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func mustDate(s string) time.Time {
	d, err := slots.ParseDate(s, time.UTC)
	if err != nil {
		panic(err)
	}
	return d
}

func testSession(b *memBackend) *BookingSession {
	return &BookingSession{ProductID: "p1", Pattern: b.pattern, Location: time.UTC, Token: "valid"}
}

func newTestResolver(b Backend, logger *slog.Logger) *Resolver {
	r := NewResolver(b, logger)
	r.now = func() time.Time { return testNow }
	return r
}
