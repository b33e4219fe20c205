package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/storefront/libs/httpx"
	"github.com/md-rashed-zaman/storefront/libs/slots"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/payments"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/reservations"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/storage"
)

type AvailabilityService interface {
	Product(ctx context.Context, productID string) (model.Product, error)
	SaveProduct(ctx context.Context, p model.Product) (model.Product, error)
	Slots(ctx context.Context, productID, date string) (availability.Day, error)
	ReservedStarts(ctx context.Context, productID, date string) ([]slots.Clock, error)
}

type ReservationService interface {
	Create(ctx context.Context, req reservations.CreateRequest) (reservations.CreateResult, error)
	Cancel(ctx context.Context, storeID, reservationID, reason string) (model.Reservation, error)
	ApplyPaymentEvent(ctx context.Context, evt payments.Event) (bool, error)
}

type ReservationLister interface {
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]model.Reservation, error)
	ListByProduct(ctx context.Context, storeID, productID string, from time.Time, limit int) ([]model.Reservation, error)
}

type WebhookConfig struct {
	StripeSecret    string
	StripeTolerance time.Duration
}

type Handler struct {
	availability AvailabilityService
	reservations ReservationService
	lister       ReservationLister
	webhook      WebhookConfig
	logger       *slog.Logger
	now          func() time.Time
}

func New(avail AvailabilityService, res ReservationService, lister ReservationLister, webhook WebhookConfig, logger *slog.Logger) *Handler {
	if webhook.StripeTolerance <= 0 {
		webhook.StripeTolerance = 5 * time.Minute
	}
	return &Handler{
		availability: avail,
		reservations: res,
		lister:       lister,
		webhook:      webhook,
		logger:       logger,
		now:          time.Now,
	}
}

// writeServiceError maps domain and storage errors onto the JSON error envelope.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *reservations.ValidationError
	var pe *slots.ValidationError
	switch {
	case errors.Is(err, reservations.ErrSlotConflict):
		httpx.WriteError(w, http.StatusConflict, "slot_conflict", "this time slot was just booked, pick another one")
	case errors.As(err, &ve):
		httpx.WriteError(w, http.StatusBadRequest, "validation_error", ve.Error())
	case errors.As(err, &pe):
		httpx.WriteError(w, http.StatusBadRequest, "validation_error", pe.Error())
	case errors.Is(err, availability.ErrInvalidDate):
		httpx.WriteError(w, http.StatusBadRequest, "validation_error", "date must be YYYY-MM-DD")
	case errors.Is(err, reservations.ErrProductNotFound), errors.Is(err, storage.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "product not found")
	case errors.Is(err, reservations.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "reservation not found")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		httpx.WriteError(w, http.StatusServiceUnavailable, "unavailable", "request timed out, try again")
	default:
		h.logger.Error("request failed", "err", err, "path", r.URL.Path, "request_id", httpx.RequestIDFromContext(r.Context()))
		httpx.WriteError(w, http.StatusInternalServerError, "internal", "something went wrong, try again")
	}
}

type reservationView struct {
	ReservationID string `json:"reservation_id"`
	ProductID     string `json:"product_id"`
	CustomerID    string `json:"customer_id"`
	BookingDate   string `json:"booking_date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	Notes         string `json:"notes,omitempty"`
	CheckoutURL   string `json:"checkout_url,omitempty"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
	CancelReason  string `json:"cancel_reason,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func toReservationView(r model.Reservation) reservationView {
	v := reservationView{
		ReservationID: r.ID,
		ProductID:     r.ProductID,
		CustomerID:    r.CustomerID,
		BookingDate:   r.DateString(),
		StartTime:     r.StartTime.String(),
		EndTime:       r.EndTime.String(),
		Status:        string(r.Status),
		Notes:         r.Notes,
		CancelReason:  r.CancelReason,
		CreatedAt:     r.CreatedAt.UTC().Format(time.RFC3339),
	}
	if r.Status == model.StatusPending {
		v.CheckoutURL = r.CheckoutURL
	}
	if r.CancelledAt != nil {
		v.CancelledAt = r.CancelledAt.UTC().Format(time.RFC3339)
	}
	return v
}

func toReservationViews(list []model.Reservation) []reservationView {
	out := make([]reservationView, 0, len(list))
	for _, r := range list {
		out = append(out, toReservationView(r))
	}
	return out
}
