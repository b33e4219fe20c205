package bookingclient

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Commit is one reservation attempt.
type Commit struct {
	Date      string
	StartTime string
	Notes     string
	// IdempotencyKey deduplicates retries of the same attempt. Empty means a fresh key.
	IdempotencyKey string
}

type Committer struct {
	backend Backend
	logger  *slog.Logger
}

func NewCommitter(backend Backend, logger *slog.Logger) *Committer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Committer{backend: backend, logger: logger}
}

// Commit submits the reservation for the session's product. Every failure is a *CommitError
// whose Message can be shown verbatim.
func (c *Committer) Commit(ctx context.Context, session *BookingSession, in Commit) (Booking, error) {
	if !session.Authenticated() {
		return Booking{}, &CommitError{Kind: KindNotAuthenticated, Message: "Sign in to book this slot."}
	}
	if strings.TrimSpace(in.Date) == "" {
		return Booking{}, &CommitError{Kind: KindValidation, Message: "Pick a date first."}
	}
	if strings.TrimSpace(in.StartTime) == "" {
		return Booking{}, &CommitError{Kind: KindValidation, Message: "Pick a time slot first."}
	}
	key := in.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}

	booking, err := c.backend.CreateBooking(ctx, session.Token, BookingRequest{
		ProductID:      session.ProductID,
		Date:           in.Date,
		StartTime:      in.StartTime,
		Notes:          in.Notes,
		IdempotencyKey: key,
	})
	if err != nil {
		ce := classify(err)
		c.logger.Info("booking commit failed", "product_id", session.ProductID, "date", in.Date,
			"start_time", in.StartTime, "kind", ce.Kind.String(), "err", err)
		return Booking{}, ce
	}
	return booking, nil
}

func classify(err error) *CommitError {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		if errors.Is(err, context.Canceled) {
			return &CommitError{Kind: KindTransient, Message: "Booking was interrupted. Try again.", Err: err}
		}
		return &CommitError{Kind: KindTransient, Message: "Could not reach the booking service. Try again.", Err: err}
	}
	switch {
	case apiErr.Status == http.StatusUnauthorized:
		return &CommitError{Kind: KindNotAuthenticated, Message: apiErr.Message, Err: err}
	case apiErr.Status == http.StatusConflict:
		return &CommitError{Kind: KindSlotConflict, Message: apiErr.Message, Err: err}
	case apiErr.Status >= 500 || apiErr.Status == http.StatusTooManyRequests || apiErr.Status == http.StatusRequestTimeout:
		return &CommitError{Kind: KindTransient, Message: apiErr.Message, Err: err}
	default:
		return &CommitError{Kind: KindValidation, Message: apiErr.Message, Err: err}
	}
}
