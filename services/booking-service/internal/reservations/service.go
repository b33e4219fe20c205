package reservations

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/storefront/libs/slots"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/payments"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/storage"
)

const MaxNotesLength = 2000

const (
	outcomeCreated  = "created"
	outcomeRejected = "rejected"
)

var errCorruptOutcome = errors.New("stored outcome is unreadable")

// Invalidator drops cached availability after a reservation changes state.
type Invalidator interface {
	InvalidateDate(ctx context.Context, productID, date string) error
}

type CreateRequest struct {
	ProductID      string
	CustomerID     string
	Date           string
	StartTime      string
	Notes          string
	IdempotencyKey string
}

type CreateResult struct {
	ReservationID string
	Status        model.Status
	CheckoutURL   string
	// Replayed is true when the result was produced by an earlier request with the same key.
	Replayed bool
}

type storedOutcome struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message,omitempty"`
}

type Service struct {
	store   storage.TxRunner
	gateway payments.Gateway
	cache   Invalidator
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService wires the commit flow. gateway and cache may be nil.
func NewService(store storage.TxRunner, gateway payments.Gateway, cache Invalidator, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		gateway: gateway,
		cache:   cache,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Create is create_booking: it re-validates the request against the product's pattern and
// inserts the reservation atomically. The database unique index is the only arbiter of
// double booking; a lost race surfaces as ErrSlotConflict.
func (s *Service) Create(ctx context.Context, req CreateRequest) (CreateResult, error) {
	start := s.now()
	res, err := s.create(ctx, req)
	s.metrics.ObserveCommit(commitResult(res, err), s.now().Sub(start))
	return res, err
}

func commitResult(res CreateResult, err error) string {
	switch {
	case err == nil && res.Replayed:
		return metrics.ResultReplayed
	case err == nil:
		return metrics.ResultCreated
	case errors.Is(err, ErrSlotConflict):
		return metrics.ResultConflict
	case IsValidation(err), errors.Is(err, ErrProductNotFound):
		return metrics.ResultValidation
	default:
		return metrics.ResultError
	}
}

func (s *Service) create(ctx context.Context, req CreateRequest) (CreateResult, error) {
	req.ProductID = strings.TrimSpace(req.ProductID)
	req.Date = strings.TrimSpace(req.Date)
	req.StartTime = strings.TrimSpace(req.StartTime)
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	if req.CustomerID == "" {
		return CreateResult{}, invalid("customer_id", "is required")
	}
	if req.ProductID == "" {
		return CreateResult{}, invalid("product_id", "is required")
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}
	hash := requestHash(req)

	var (
		result   CreateResult
		rejected error
		product  model.Product
		created  model.Reservation
	)
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		rec, err := tx.LockIdempotencyKey(ctx, req.CustomerID, req.IdempotencyKey, hash)
		if err != nil {
			return fmt.Errorf("lock idempotency key: %w", err)
		}
		if rec.Finalized() {
			if rec.RequestHash != hash {
				rejected = invalid("idempotency_key", "was already used for a different booking request")
				return nil
			}
			return s.replay(ctx, tx, rec, &result, &rejected, &product, &created)
		}

		product, err = tx.GetProduct(ctx, req.ProductID)
		if errors.Is(err, storage.ErrNotFound) {
			rejected = ErrProductNotFound
			return finalizeRejected(ctx, tx, rec, rejected)
		}
		if err != nil {
			return fmt.Errorf("load product: %w", err)
		}

		draft, verr := s.validate(product, req)
		if verr != nil {
			rejected = verr
			return finalizeRejected(ctx, tx, rec, verr)
		}

		if err := tx.InsertReservation(ctx, &draft); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return ErrSlotConflict
			}
			return fmt.Errorf("insert reservation: %w", err)
		}
		created = draft

		evt, err := newEvent(outbox.EventReservationCreated, draft, "", s.now())
		if err != nil {
			return err
		}
		if err := tx.InsertOutbox(ctx, evt); err != nil {
			return fmt.Errorf("insert outbox: %w", err)
		}

		rec.ReservationID = draft.ID
		rec.Outcome = outcomeCreated
		rec.Response, err = json.Marshal(storedOutcome{})
		if err != nil {
			return fmt.Errorf("encode idempotency outcome: %w", err)
		}
		if err := tx.FinalizeIdempotency(ctx, rec); err != nil {
			return fmt.Errorf("finalize idempotency: %w", err)
		}
		result = CreateResult{ReservationID: draft.ID, Status: draft.Status}
		return nil
	})
	if err != nil {
		return CreateResult{}, err
	}
	if rejected != nil {
		return CreateResult{}, rejected
	}

	if !result.Replayed {
		s.invalidate(ctx, created)
		s.logger.Info("reservation created",
			"reservation_id", created.ID,
			"product_id", created.ProductID,
			"booking_date", created.DateString(),
			"start_time", created.StartTime.String(),
			"status", string(created.Status),
		)
	}
	if created.Status == model.StatusPending && created.CheckoutSessionID == "" {
		result.CheckoutURL = s.ensureCheckout(ctx, product, created, req.IdempotencyKey)
	}
	return result, nil
}

func (s *Service) replay(ctx context.Context, tx storage.Tx, rec storage.IdempotencyRecord, result *CreateResult, rejected *error, product *model.Product, res *model.Reservation) error {
	if rec.Outcome == outcomeRejected {
		var stored storedOutcome
		if err := json.Unmarshal(rec.Response, &stored); err != nil || stored.Message == "" {
			return fmt.Errorf("decode stored outcome for idempotency key %q: %w", rec.Key, errors.Join(errCorruptOutcome, err))
		}
		if stored.Field == "product_id" && stored.Message == ErrProductNotFound.Error() {
			*rejected = ErrProductNotFound
		} else {
			*rejected = invalid(stored.Field, stored.Message)
		}
		return nil
	}

	current, err := tx.GetReservationForUpdate(ctx, rec.ReservationID)
	if err != nil {
		return fmt.Errorf("load replayed reservation: %w", err)
	}
	*result = CreateResult{
		ReservationID: current.ID,
		Status:        current.Status,
		CheckoutURL:   current.CheckoutURL,
		Replayed:      true,
	}
	*res = current
	if current.Status == model.StatusPending && current.CheckoutSessionID == "" {
		p, err := tx.GetProduct(ctx, current.ProductID)
		if err != nil {
			return fmt.Errorf("load product: %w", err)
		}
		*product = p
	}
	return nil
}

func finalizeRejected(ctx context.Context, tx storage.Tx, rec storage.IdempotencyRecord, cause error) error {
	stored := storedOutcome{Message: cause.Error()}
	var ve *ValidationError
	if errors.As(cause, &ve) {
		stored = storedOutcome{Field: ve.Field, Message: ve.Message}
	} else if errors.Is(cause, ErrProductNotFound) {
		stored = storedOutcome{Field: "product_id", Message: ErrProductNotFound.Error()}
	}
	rec.Outcome = outcomeRejected
	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode idempotency outcome: %w", err)
	}
	rec.Response = raw
	if err := tx.FinalizeIdempotency(ctx, rec); err != nil {
		return fmt.Errorf("finalize idempotency: %w", err)
	}
	return nil
}

// validate checks the request against the product's pattern in the store's time zone and
// returns the reservation to insert.
func (s *Service) validate(product model.Product, req CreateRequest) (model.Reservation, *ValidationError) {
	loc := product.Location()
	day, err := slots.ParseDate(req.Date, loc)
	if err != nil {
		return model.Reservation{}, invalid("date", "must be YYYY-MM-DD")
	}
	if slots.IsPast(day, s.now(), loc) {
		return model.Reservation{}, invalid("date", "is in the past")
	}
	if !product.Pattern.AllowsWeekday(day.Weekday()) {
		return model.Reservation{}, invalid("date", strings.ToLower(day.Weekday().String())+" is not bookable for this product")
	}
	start, err := slots.ParseClock(req.StartTime)
	if err != nil {
		return model.Reservation{}, invalid("start_time", "must be HH:MM")
	}
	if !product.Pattern.HasStart(start) {
		return model.Reservation{}, invalid("start_time", start.String()+" is not one of the product's time slots")
	}
	if utf8.RuneCountInString(req.Notes) > MaxNotesLength {
		return model.Reservation{}, invalid("notes", fmt.Sprintf("must be at most %d characters", MaxNotesLength))
	}

	status := model.StatusConfirmed
	if product.IsPaid() {
		status = model.StatusPending
	}
	return model.Reservation{
		ProductID:   product.ProductID,
		StoreID:     product.StoreID,
		CustomerID:  req.CustomerID,
		BookingDate: day,
		StartTime:   start,
		EndTime:     start.Add(product.Pattern.DurationMinutes),
		Status:      status,
		Notes:       req.Notes,
	}, nil
}

// ensureCheckout opens a payment page for a pending reservation. Failures are logged and
// leave the reservation pending; retrying the request with the same key tries again.
func (s *Service) ensureCheckout(ctx context.Context, product model.Product, res model.Reservation, key string) string {
	if s.gateway == nil || product.ProductID == "" {
		return ""
	}
	checkout, err := s.gateway.CreateCheckout(ctx, payments.CheckoutRequest{
		ReservationID:  res.ID,
		ProductID:      product.ProductID,
		Title:          product.Title,
		AmountCents:    product.PriceCents,
		Currency:       product.Currency,
		CustomerID:     res.CustomerID,
		IdempotencyKey: key,
	})
	if err != nil {
		if !errors.Is(err, payments.ErrDisabled) {
			s.logger.Error("checkout session create failed", "err", err, "reservation_id", res.ID)
		}
		return ""
	}
	err = s.store.WithinTx(ctx, func(tx storage.Tx) error {
		return tx.SetCheckoutSession(ctx, res.ID, checkout.SessionID, checkout.URL)
	})
	if err != nil {
		s.logger.Error("checkout session persist failed", "err", err, "reservation_id", res.ID)
		return ""
	}
	return checkout.URL
}

// Cancel marks a reservation of storeID cancelled. Cancelling twice is a no-op.
func (s *Service) Cancel(ctx context.Context, storeID, reservationID, reason string) (model.Reservation, error) {
	var (
		out     model.Reservation
		changed bool
	)
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		res, err := tx.GetReservationForUpdate(ctx, reservationID)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && res.StoreID != storeID) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if res.Status == model.StatusCancelled {
			out = res
			return nil
		}
		if err := s.transition(ctx, tx, &res, model.StatusCancelled, reason); err != nil {
			return err
		}
		out, changed = res, true
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	if changed {
		s.invalidate(ctx, out)
		s.logger.Info("reservation cancelled", "reservation_id", out.ID, "reason", reason)
	}
	return out, nil
}

// ApplyPaymentEvent confirms or releases a pending reservation from a verified provider event.
// Replayed provider events are recorded once and otherwise ignored. It reports whether the
// event was new.
func (s *Service) ApplyPaymentEvent(ctx context.Context, evt payments.Event) (bool, error) {
	var (
		fresh   bool
		changed model.Reservation
	)
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		inserted, err := tx.InsertPaymentEvent(ctx, evt.Provider, evt.ID, evt.Type, evt.Payload)
		if err != nil {
			return fmt.Errorf("record payment event: %w", err)
		}
		if !inserted {
			return nil
		}
		fresh = true
		if evt.Kind == payments.EventIgnored || evt.ReservationID == "" {
			return nil
		}

		res, err := tx.GetReservationForUpdate(ctx, evt.ReservationID)
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("payment event for unknown reservation", "provider_event_id", evt.ID, "reservation_id", evt.ReservationID)
			return nil
		}
		if err != nil {
			return err
		}
		if res.Status != model.StatusPending {
			if evt.Kind == payments.EventPaid && res.Status == model.StatusCancelled {
				s.logger.Warn("payment received for cancelled reservation", "reservation_id", res.ID, "provider_event_id", evt.ID)
			}
			return nil
		}

		switch evt.Kind {
		case payments.EventPaid:
			err = s.transition(ctx, tx, &res, model.StatusConfirmed, "")
		case payments.EventAbandoned:
			err = s.transition(ctx, tx, &res, model.StatusCancelled, "checkout_expired")
		}
		if err != nil {
			return err
		}
		changed = res
		return nil
	})
	if err != nil {
		return false, err
	}
	if changed.ID != "" {
		s.invalidate(ctx, changed)
		s.logger.Info("reservation payment applied", "reservation_id", changed.ID, "status", string(changed.Status), "provider_event_id", evt.ID)
	}
	return fresh, nil
}

func (s *Service) transition(ctx context.Context, tx storage.Tx, res *model.Reservation, to model.Status, reason string) error {
	if err := tx.UpdateReservationStatus(ctx, res.ID, to, reason); err != nil {
		return fmt.Errorf("update reservation status: %w", err)
	}
	now := s.now()
	res.Status = to
	eventType := outbox.EventReservationConfirmed
	if to == model.StatusCancelled {
		res.CancelledAt = &now
		res.CancelReason = reason
		eventType = outbox.EventReservationCancelled
	}
	evt, err := newEvent(eventType, *res, reason, now)
	if err != nil {
		return err
	}
	if err := tx.InsertOutbox(ctx, evt); err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}
	return nil
}

// invalidate bumps the cached day's generation, trying twice. If both attempts fail the old
// entry can be served until its TTL expires; the commit itself is unaffected.
func (s *Service) invalidate(ctx context.Context, res model.Reservation) {
	if s.cache == nil {
		return
	}
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if err = s.cache.InvalidateDate(ctx, res.ProductID, res.DateString()); err == nil {
			return
		}
	}
	s.logger.Error("slot cache invalidation failed, cached day may be stale until ttl",
		"err", err, "product_id", res.ProductID, "booking_date", res.DateString())
}

func requestHash(req CreateRequest) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{req.ProductID, req.Date, req.StartTime, req.Notes}, "\x1f")))
	return hex.EncodeToString(sum[:])
}
