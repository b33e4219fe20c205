package handlers

import (
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/storefront/libs/httpx"
	"github.com/md-rashed-zaman/storefront/libs/slots"
)

type productAvailabilityResponse struct {
	ProductID           string   `json:"product_id"`
	StoreID             string   `json:"store_id"`
	Title               string   `json:"title"`
	Timezone            string   `json:"timezone"`
	PriceCents          int64    `json:"price_cents"`
	Currency            string   `json:"currency"`
	AvailableWeekdays   []string `json:"available_weekdays"`
	TimeSlotStarts      []string `json:"time_slot_starts"`
	CallDurationMinutes int      `json:"call_duration_minutes"`
}

type slotsResponse struct {
	ProductID string            `json:"product_id"`
	Date      string            `json:"date"`
	Timezone  string            `json:"timezone"`
	Eligible  bool              `json:"eligible"`
	Slots     []slots.Annotated `json:"slots"`
}

type reservedStartsResponse struct {
	ProductID      string        `json:"product_id"`
	Date           string        `json:"date"`
	ReservedStarts []slots.Clock `json:"reserved_starts"`
}

// ProductAvailability returns the product's weekly pattern so clients can render the calendar
// and generate slots locally when the aggregate query is unavailable.
func (h *Handler) ProductAvailability(w http.ResponseWriter, r *http.Request) {
	productID := strings.TrimSpace(r.PathValue("id"))
	p, err := h.availability.Product(r.Context(), productID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, productAvailabilityResponse{
		ProductID:           p.ProductID,
		StoreID:             p.StoreID,
		Title:               p.Title,
		Timezone:            p.Location().String(),
		PriceCents:          p.PriceCents,
		Currency:            p.Currency,
		AvailableWeekdays:   p.Pattern.WeekdayStrings(),
		TimeSlotStarts:      p.Pattern.StartStrings(),
		CallDurationMinutes: p.Pattern.DurationMinutes,
	})
}

// Slots is get_available_slots.
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	productID, date, ok := productAndDate(w, r)
	if !ok {
		return
	}
	day, err := h.availability.Slots(r.Context(), productID, date)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, slotsResponse{
		ProductID: day.ProductID,
		Date:      day.Date,
		Timezone:  day.Timezone,
		Eligible:  day.Eligible,
		Slots:     day.Slots,
	})
}

// ReservedStarts lists the start times held by live reservations. Clients only need it when
// Slots fails.
func (h *Handler) ReservedStarts(w http.ResponseWriter, r *http.Request) {
	productID, date, ok := productAndDate(w, r)
	if !ok {
		return
	}
	starts, err := h.availability.ReservedStarts(r.Context(), productID, date)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if starts == nil {
		starts = []slots.Clock{}
	}
	httpx.WriteJSON(w, http.StatusOK, reservedStartsResponse{ProductID: productID, Date: date, ReservedStarts: starts})
}

func productAndDate(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	q := r.URL.Query()
	productID := strings.TrimSpace(q.Get("product_id"))
	date := strings.TrimSpace(q.Get("date"))
	if productID == "" || date == "" {
		httpx.WriteError(w, http.StatusBadRequest, "validation_error", "product_id and date are required")
		return "", "", false
	}
	return productID, date, true
}
