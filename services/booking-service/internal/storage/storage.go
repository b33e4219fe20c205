package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/storefront/libs/slots"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/outbox"
)

var (
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict is returned when a live reservation already holds the slot.
	ErrConflict = errors.New("storage: conflict")
)

// IdempotencyRecord is the stored outcome of one create_booking attempt.
// Outcome is empty until the attempt has been finalized.
type IdempotencyRecord struct {
	CustomerID    string
	Key           string
	RequestHash   string
	ReservationID string
	Outcome       string
	Response      []byte
}

func (r IdempotencyRecord) Finalized() bool {
	return r.Outcome != ""
}

// Tx is the set of statements the booking flows run inside one database transaction.
type Tx interface {
	LockIdempotencyKey(ctx context.Context, customerID, key, requestHash string) (IdempotencyRecord, error)
	FinalizeIdempotency(ctx context.Context, rec IdempotencyRecord) error
	GetProduct(ctx context.Context, productID string) (model.Product, error)
	InsertReservation(ctx context.Context, r *model.Reservation) error
	GetReservationForUpdate(ctx context.Context, reservationID string) (model.Reservation, error)
	UpdateReservationStatus(ctx context.Context, reservationID string, status model.Status, reason string) error
	SetCheckoutSession(ctx context.Context, reservationID, sessionID, url string) error
	InsertPaymentEvent(ctx context.Context, provider, eventID, eventType string, payload []byte) (bool, error)
	InsertOutbox(ctx context.Context, evt outbox.Event) error
}

// TxRunner runs fn in a transaction, committing when fn returns nil.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(Tx) error) error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case isUniqueViolation(err):
		return ErrConflict
	default:
		return err
	}
}

const reservationColumns = `
	id::text, product_id, store_id, customer_id, booking_date, start_time, end_time, status, notes,
	COALESCE(checkout_session_id, ''), COALESCE(checkout_url, ''), cancelled_at,
	COALESCE(cancellation_reason, ''), created_at`

func scanReservation(row pgx.Row) (model.Reservation, error) {
	var (
		r           model.Reservation
		start, end  string
		status      string
		cancelledAt *time.Time
	)
	err := row.Scan(&r.ID, &r.ProductID, &r.StoreID, &r.CustomerID, &r.BookingDate, &start, &end, &status,
		&r.Notes, &r.CheckoutSessionID, &r.CheckoutURL, &cancelledAt, &r.CancelReason, &r.CreatedAt)
	if err != nil {
		return model.Reservation{}, err
	}
	if r.StartTime, err = slots.ParseClock(start); err != nil {
		return model.Reservation{}, err
	}
	if r.EndTime, err = slots.ParseClock(end); err != nil {
		return model.Reservation{}, err
	}
	r.Status = model.Status(status)
	r.CancelledAt = cancelledAt
	return r, nil
}

const productColumns = `
	product_id, store_id, title, timezone, available_weekdays, slot_starts, call_duration_minutes,
	price_cents, currency, updated_at`

func scanProduct(row pgx.Row) (model.Product, error) {
	var (
		p        model.Product
		weekdays []string
		starts   []string
		duration int
	)
	err := row.Scan(&p.ProductID, &p.StoreID, &p.Title, &p.Timezone, &weekdays, &starts, &duration,
		&p.PriceCents, &p.Currency, &p.UpdatedAt)
	if err != nil {
		return model.Product{}, err
	}
	p.Pattern, err = slots.ParsePattern(weekdays, starts, duration)
	if err != nil {
		return model.Product{}, err
	}
	return p, nil
}
