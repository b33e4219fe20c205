package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/storefront/libs/auth"
	"github.com/md-rashed-zaman/storefront/libs/httpx"
)

const RoleCreator = "creator"

// Register mounts the booking API on mux. publicLimit guards the unauthenticated reads and
// may be nil.
func (h *Handler) Register(mux *http.ServeMux, verifier *auth.Verifier, publicLimit httpx.Middleware) {
	public := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn, publicLimit)
	}
	session := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn, auth.RequireSession(verifier))
	}
	creator := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn, auth.RequireSession(verifier), auth.RequireRole(RoleCreator))
	}

	mux.Handle("GET /api/v1/public/products/{id}/availability", public(h.ProductAvailability))
	mux.Handle("GET /api/v1/public/slots", public(h.Slots))
	mux.Handle("GET /api/v1/public/reservations", public(h.ReservedStarts))

	mux.Handle("POST /api/v1/bookings", session(h.CreateBooking))
	mux.Handle("GET /api/v1/bookings/mine", session(h.MyBookings))

	mux.Handle("PUT /api/v1/creator/products/{id}/availability", creator(h.PutAvailability))
	mux.Handle("GET /api/v1/creator/products/{id}/reservations", creator(h.ProductReservations))
	mux.Handle("POST /api/v1/creator/reservations/{id}/cancel", creator(h.CancelReservation))

	mux.HandleFunc("POST /api/v1/payments/webhooks/stripe", h.StripeWebhook)
}
