package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/md-rashed-zaman/storefront/libs/auth"
	"github.com/md-rashed-zaman/storefront/libs/httpx"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/reservations"
)

const maxIdempotencyKeyLength = 128

type createBookingRequest struct {
	ProductID string `json:"product_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	Notes     string `json:"notes"`
}

type createBookingResponse struct {
	ReservationID string `json:"reservation_id"`
	Status        string `json:"status"`
	CheckoutURL   string `json:"checkout_url,omitempty"`
}

// CreateBooking is create_booking. It must run behind auth.RequireSession; the customer is
// always the session subject, never a body field.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok || claims.UserID() == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "not_authenticated", "sign in to book")
		return
	}

	var req createBookingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if len(key) > maxIdempotencyKeyLength {
		httpx.WriteError(w, http.StatusBadRequest, "validation_error", "Idempotency-Key is too long")
		return
	}

	res, err := h.reservations.Create(r.Context(), reservations.CreateRequest{
		ProductID:      req.ProductID,
		CustomerID:     claims.UserID(),
		Date:           req.Date,
		StartTime:      req.StartTime,
		Notes:          req.Notes,
		IdempotencyKey: key,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if res.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	httpx.WriteJSON(w, http.StatusCreated, createBookingResponse{
		ReservationID: res.ReservationID,
		Status:        string(res.Status),
		CheckoutURL:   res.CheckoutURL,
	})
}

// MyBookings lists the session customer's reservations, newest first.
func (h *Handler) MyBookings(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok || claims.UserID() == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "not_authenticated", "sign in to continue")
		return
	}
	limit := queryLimit(r, 50)
	list, err := h.lister.ListByCustomer(r.Context(), claims.UserID(), limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"reservations": toReservationViews(list)})
}

func queryLimit(r *http.Request, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	if n > 200 {
		return 200
	}
	return n
}
