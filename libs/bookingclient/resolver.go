package bookingclient

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/storefront/libs/slots"
)

// Source records which path produced a Resolution.
type Source string

const (
	SourcePrimary  Source = "primary"
	SourceFallback Source = "fallback"
	SourceFailOpen Source = "fail_open"
	SourceFailed   Source = "failed"
)

const (
	WarningFallback = "Availability may be out of date. Retry to refresh."
	WarningFailed   = "Failed to load slots."
)

// Resolution is the annotated slot list for one date plus how it was obtained.
// Warning is non-empty whenever the primary path failed.
type Resolution struct {
	Date    string
	Slots   []slots.Annotated
	Source  Source
	Warning string
	// Err is the primary-path error when the fallback ran, or the fallback error on total
	// failure. It is informational; Resolve never fails.
	Err error
}

// Degraded reports whether the slots did not come from the server-side aggregate query.
func (r Resolution) Degraded() bool { return r.Source != SourcePrimary }

// Resolver answers "which slots of this product are free on this date".
type Resolver struct {
	backend Backend
	logger  *slog.Logger
	// FailOpen shows every generated slot as available when both paths fail. The server
	// commit still rejects taken slots, so this only risks a doomed commit attempt.
	FailOpen bool
	now      func() time.Time
}

func NewResolver(backend Backend, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{backend: backend, logger: logger, FailOpen: true, now: time.Now}
}

// Resolve tries the server-annotated slots first. When that fails it generates the pattern's
// slots locally and annotates them against the raw reservation starts. When that fails too it
// returns the generated slots, all available if FailOpen is set and none otherwise.
// Like the server, the local paths return no slots for a past date or an unoffered weekday.
func (r *Resolver) Resolve(ctx context.Context, session *BookingSession, date string) Resolution {
	productID := session.ProductID
	annotated, err := r.backend.GetAvailableSlots(ctx, productID, date)
	if err == nil {
		return Resolution{Date: date, Slots: annotated, Source: SourcePrimary}
	}
	r.logger.Warn("slot query failed, using fallback", "product_id", productID, "date", date, "err", err)

	day, derr := slots.ParseDate(date, session.location())
	if derr != nil || !session.Selectable(day, r.now()) {
		return Resolution{Date: date, Slots: []slots.Annotated{}, Source: SourceFallback, Warning: WarningFallback, Err: err}
	}
	candidates := slots.Generate(session.Pattern)
	reserved, ferr := r.backend.ListReservedStarts(ctx, productID, date)
	if ferr == nil {
		return Resolution{
			Date:    date,
			Slots:   slots.Annotate(candidates, reserved),
			Source:  SourceFallback,
			Warning: WarningFallback,
			Err:     err,
		}
	}
	r.logger.Error("reservation query failed", "product_id", productID, "date", date, "err", ferr)

	if !r.FailOpen {
		return Resolution{Date: date, Slots: []slots.Annotated{}, Source: SourceFailed, Warning: WarningFailed, Err: ferr}
	}
	return Resolution{
		Date:    date,
		Slots:   slots.AllAvailable(candidates),
		Source:  SourceFailOpen,
		Warning: WarningFailed,
		Err:     ferr,
	}
}
