package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/storefront/libs/db"
	"github.com/md-rashed-zaman/storefront/libs/slots"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/outbox"
)

type BookingRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewBookingRepository(pool *db.Pool, outboxRepo *outbox.Repository) *BookingRepository {
	return &BookingRepository{pool: pool, outbox: outboxRepo}
}

func (r *BookingRepository) WithinTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&bookingTx{tx: tx, outbox: r.outbox}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *BookingRepository) GetProduct(ctx context.Context, productID string) (model.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM bookable_products WHERE product_id = $1`, productID))
	return p, mapErr(err)
}

// UpsertProduct stores the booking view of a product. An existing product owned by another
// store is reported as ErrNotFound.
func (r *BookingRepository) UpsertProduct(ctx context.Context, p model.Product) (model.Product, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO bookable_products
			(product_id, store_id, title, timezone, available_weekdays, slot_starts, call_duration_minutes, price_cents, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (product_id) DO UPDATE
		SET title = EXCLUDED.title,
			timezone = EXCLUDED.timezone,
			available_weekdays = EXCLUDED.available_weekdays,
			slot_starts = EXCLUDED.slot_starts,
			call_duration_minutes = EXCLUDED.call_duration_minutes,
			price_cents = EXCLUDED.price_cents,
			currency = EXCLUDED.currency,
			updated_at = now()
		WHERE bookable_products.store_id = EXCLUDED.store_id
		RETURNING `+productColumns,
		p.ProductID, p.StoreID, p.Title, p.Timezone, p.Pattern.WeekdayStrings(), p.Pattern.StartStrings(),
		p.Pattern.DurationMinutes, p.PriceCents, p.Currency)
	saved, err := scanProduct(row)
	return saved, mapErr(err)
}

// ReservedStarts returns the start times held by non-cancelled reservations of a product on date.
func (r *BookingRepository) ReservedStarts(ctx context.Context, productID string, date time.Time) ([]slots.Clock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time
		FROM reservations
		WHERE product_id = $1
			AND booking_date = $2::date
			AND status <> 'cancelled'
	`, productID, date.Format(slots.DateLayout))
	if err != nil {
		return nil, err
	}
	raw, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	out := make([]slots.Clock, 0, len(raw))
	for _, s := range raw {
		c, err := slots.ParseClock(s)
		if err != nil {
			return nil, fmt.Errorf("reservation start %q: %w", s, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *BookingRepository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]model.Reservation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE customer_id = $1
		ORDER BY booking_date DESC, start_time DESC
		LIMIT $2
	`, customerID, limit)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

// ListByProduct lists a product's reservations from the given date on. Only rows of storeID
// are returned so creators never see another store's bookings.
func (r *BookingRepository) ListByProduct(ctx context.Context, storeID, productID string, from time.Time, limit int) ([]model.Reservation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE store_id = $1
			AND product_id = $2
			AND booking_date >= $3::date
		ORDER BY booking_date ASC, start_time ASC
		LIMIT $4
	`, storeID, productID, from.Format(slots.DateLayout), limit)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

func collectReservations(rows pgx.Rows) ([]model.Reservation, error) {
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

type bookingTx struct {
	tx     pgx.Tx
	outbox *outbox.Repository
}

func (t *bookingTx) LockIdempotencyKey(ctx context.Context, customerID, key, requestHash string) (IdempotencyRecord, error) {
	rec, err := t.selectIdempotencyForUpdate(ctx, customerID, key)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, err
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (customer_id, idempotency_key, request_hash)
		VALUES ($1, $2, $3)
		ON CONFLICT (customer_id, idempotency_key) DO NOTHING
	`, customerID, key, requestHash)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	return t.selectIdempotencyForUpdate(ctx, customerID, key)
}

func (t *bookingTx) FinalizeIdempotency(ctx context.Context, rec IdempotencyRecord) error {
	var reservationID any
	if rec.ReservationID != "" {
		reservationID = rec.ReservationID
	}
	_, err := t.tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET reservation_id = $3,
			outcome = $4,
			response_payload = $5,
			updated_at = now()
		WHERE customer_id = $1 AND idempotency_key = $2
	`, rec.CustomerID, rec.Key, reservationID, rec.Outcome, rec.Response)
	return err
}

func (t *bookingTx) selectIdempotencyForUpdate(ctx context.Context, customerID, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := t.tx.QueryRow(ctx, `
		SELECT customer_id,
			idempotency_key,
			request_hash,
			COALESCE(reservation_id::text, ''),
			COALESCE(outcome, ''),
			COALESCE(response_payload::text, '')
		FROM booking_idempotency_keys
		WHERE customer_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, customerID, key).Scan(
		&rec.CustomerID,
		&rec.Key,
		&rec.RequestHash,
		&rec.ReservationID,
		&rec.Outcome,
		&responseText,
	)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.Response = []byte(responseText)
	}
	return rec, nil
}

func (t *bookingTx) GetProduct(ctx context.Context, productID string) (model.Product, error) {
	p, err := scanProduct(t.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM bookable_products WHERE product_id = $1`, productID))
	return p, mapErr(err)
}

func (t *bookingTx) InsertReservation(ctx context.Context, res *model.Reservation) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO reservations
			(product_id, store_id, customer_id, booking_date, start_time, end_time, status, notes)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8)
		RETURNING id::text, created_at
	`, res.ProductID, res.StoreID, res.CustomerID, res.DateString(), res.StartTime.String(), res.EndTime.String(),
		string(res.Status), res.Notes).Scan(&res.ID, &res.CreatedAt)
	return mapErr(err)
}

func (t *bookingTx) GetReservationForUpdate(ctx context.Context, reservationID string) (model.Reservation, error) {
	res, err := scanReservation(t.tx.QueryRow(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE id = $1
		FOR UPDATE
	`, reservationID))
	return res, mapErr(err)
}

func (t *bookingTx) UpdateReservationStatus(ctx context.Context, reservationID string, status model.Status, reason string) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE reservations
		SET status = $2,
			cancelled_at = CASE WHEN $2 = 'cancelled' THEN now() ELSE cancelled_at END,
			cancellation_reason = CASE WHEN $2 = 'cancelled' THEN NULLIF($3, '') ELSE cancellation_reason END
		WHERE id = $1
	`, reservationID, string(status), reason)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *bookingTx) SetCheckoutSession(ctx context.Context, reservationID, sessionID, url string) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE reservations
		SET checkout_session_id = $2,
			checkout_url = $3
		WHERE id = $1
	`, reservationID, sessionID, url)
	return mapErr(err)
}

// InsertPaymentEvent records a provider event and reports false when it was already recorded.
func (t *bookingTx) InsertPaymentEvent(ctx context.Context, provider, eventID, eventType string, payload []byte) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO payment_events (provider, provider_event_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider, provider_event_id) DO NOTHING
	`, provider, eventID, eventType, payload)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *bookingTx) InsertOutbox(ctx context.Context, evt outbox.Event) error {
	return t.outbox.Insert(ctx, t.tx, evt)
}
