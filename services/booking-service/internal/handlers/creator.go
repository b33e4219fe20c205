package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/storefront/libs/auth"
	"github.com/md-rashed-zaman/storefront/libs/httpx"
	"github.com/md-rashed-zaman/storefront/libs/slots"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/model"
)

type putAvailabilityRequest struct {
	Title               string   `json:"title"`
	Timezone            string   `json:"timezone"`
	PriceCents          int64    `json:"price_cents"`
	Currency            string   `json:"currency"`
	AvailableWeekdays   []string `json:"available_weekdays"`
	TimeSlotStarts      []string `json:"time_slot_starts"`
	CallDurationMinutes int      `json:"call_duration_minutes"`
}

type cancelReservationRequest struct {
	Reason string `json:"reason"`
}

// creatorStore returns the store of the signed-in creator. Routes are wrapped in
// auth.RequireRole, so a missing store id is a token problem.
func creatorStore(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok || strings.TrimSpace(claims.StoreID) == "" {
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "session is not bound to a store")
		return "", false
	}
	return claims.StoreID, true
}

func (h *Handler) PutAvailability(w http.ResponseWriter, r *http.Request) {
	storeID, ok := creatorStore(w, r)
	if !ok {
		return
	}
	productID := strings.TrimSpace(r.PathValue("id"))

	var req putAvailabilityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if req.PriceCents < 0 {
		httpx.WriteError(w, http.StatusBadRequest, "validation_error", "price_cents must not be negative")
		return
	}
	pattern, err := slots.ParsePattern(req.AvailableWeekdays, req.TimeSlotStarts, req.CallDurationMinutes)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	saved, err := h.availability.SaveProduct(r.Context(), model.Product{
		ProductID:  productID,
		StoreID:    storeID,
		Title:      strings.TrimSpace(req.Title),
		Timezone:   strings.TrimSpace(req.Timezone),
		Pattern:    pattern,
		PriceCents: req.PriceCents,
		Currency:   strings.ToLower(strings.TrimSpace(req.Currency)),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.logger.Info("product availability saved", "product_id", saved.ProductID, "store_id", storeID)
	httpx.WriteJSON(w, http.StatusOK, productAvailabilityResponse{
		ProductID:           saved.ProductID,
		StoreID:             saved.StoreID,
		Title:               saved.Title,
		Timezone:            saved.Timezone,
		PriceCents:          saved.PriceCents,
		Currency:            saved.Currency,
		AvailableWeekdays:   saved.Pattern.WeekdayStrings(),
		TimeSlotStarts:      saved.Pattern.StartStrings(),
		CallDurationMinutes: saved.Pattern.DurationMinutes,
	})
}

// ProductReservations lists a product's reservations from ?from= (default today, store zone),
// cancelled ones included.
func (h *Handler) ProductReservations(w http.ResponseWriter, r *http.Request) {
	storeID, ok := creatorStore(w, r)
	if !ok {
		return
	}
	productID := strings.TrimSpace(r.PathValue("id"))
	p, err := h.availability.Product(r.Context(), productID)
	if err != nil || p.StoreID != storeID {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "product not found")
		return
	}

	from := slots.Today(h.now(), p.Location())
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		from, err = slots.ParseDate(raw, p.Location())
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "validation_error", "from must be YYYY-MM-DD")
			return
		}
	}
	list, err := h.lister.ListByProduct(r.Context(), storeID, productID, from, queryLimit(r, 100))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"reservations": toReservationViews(list)})
}

func (h *Handler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	storeID, ok := creatorStore(w, r)
	if !ok {
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if _, err := uuid.Parse(id); err != nil {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "reservation not found")
		return
	}

	var req cancelReservationRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
	}
	res, err := h.reservations.Cancel(r.Context(), storeID, id, strings.TrimSpace(req.Reason))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toReservationView(res))
}
