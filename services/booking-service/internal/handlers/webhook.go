package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/storefront/libs/httpx"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/payments"
)

// StripeWebhook confirms or releases pending reservations. There is no session auth; the
// signature is the auth.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if strings.TrimSpace(h.webhook.StripeSecret) == "" {
		httpx.WriteError(w, http.StatusServiceUnavailable, "unavailable", "stripe webhook not configured")
		return
	}
	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		httpx.WriteError(w, http.StatusBadRequest, "validation_error", "missing Stripe-Signature header")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "validation_error", "failed to read request body")
		return
	}

	evt, err := payments.ParseStripeEvent(body, sigHeader, h.webhook.StripeSecret, h.webhook.StripeTolerance)
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_signature", "invalid signature")
			return
		}
		h.logger.Error("stripe event rejected", "err", err)
		httpx.WriteError(w, http.StatusBadRequest, "validation_error", "invalid event payload")
		return
	}
	h.logger.Info("payment provider event received",
		"provider", evt.Provider,
		"provider_event_id", evt.ID,
		"event_type", evt.Type,
		"reservation_id", evt.ReservationID,
	)

	fresh, err := h.reservations.ApplyPaymentEvent(r.Context(), evt)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	status := "processed"
	if !fresh {
		status = "duplicate"
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": status})
}
