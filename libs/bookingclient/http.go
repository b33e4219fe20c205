package bookingclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/md-rashed-zaman/storefront/libs/httpx"
	"github.com/md-rashed-zaman/storefront/libs/slots"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPBackend implements Backend against the booking-service REST API.
type HTTPBackend struct {
	baseURL string
	client  *http.Client
}

// NewHTTPBackend returns a backend rooted at baseURL. A nil client gets a traced client with
// a 10s timeout.
func NewHTTPBackend(baseURL string, client *http.Client) *HTTPBackend {
	if client == nil {
		client = &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &HTTPBackend{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type slotsResponse struct {
	Slots []slots.Annotated `json:"slots"`
}

type reservedResponse struct {
	ReservedStarts []slots.Clock `json:"reserved_starts"`
}

type productResponse struct {
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

type createBookingBody struct {
	ProductID string `json:"product_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	Notes     string `json:"notes,omitempty"`
}

type createBookingResponse struct {
	ReservationID string `json:"reservation_id"`
	Status        string `json:"status"`
	CheckoutURL   string `json:"checkout_url"`
}

func (b *HTTPBackend) GetAvailableSlots(ctx context.Context, productID, date string) ([]slots.Annotated, error) {
	var out slotsResponse
	q := url.Values{"product_id": {productID}, "date": {date}}
	if _, err := b.do(ctx, http.MethodGet, "/api/v1/public/slots?"+q.Encode(), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Slots, nil
}

func (b *HTTPBackend) ListReservedStarts(ctx context.Context, productID, date string) ([]slots.Clock, error) {
	var out reservedResponse
	q := url.Values{"product_id": {productID}, "date": {date}}
	if _, err := b.do(ctx, http.MethodGet, "/api/v1/public/reservations?"+q.Encode(), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.ReservedStarts, nil
}

func (b *HTTPBackend) GetProduct(ctx context.Context, productID string) (Product, error) {
	var out productResponse
	if _, err := b.do(ctx, http.MethodGet, "/api/v1/public/products/"+url.PathEscape(productID)+"/availability", nil, nil, &out); err != nil {
		return Product{}, err
	}
	pattern, err := slots.ParsePattern(out.AvailableWeekdays, out.TimeSlotStarts, out.CallDurationMinutes)
	if err != nil {
		return Product{}, fmt.Errorf("product %s: %w", productID, err)
	}
	loc, err := time.LoadLocation(out.Timezone)
	if err != nil {
		return Product{}, fmt.Errorf("product %s timezone: %w", productID, err)
	}
	return Product{
		ID:         out.ProductID,
		StoreID:    out.StoreID,
		Title:      out.Title,
		PriceCents: out.PriceCents,
		Currency:   out.Currency,
		Pattern:    pattern,
		Location:   loc,
	}, nil
}

func (b *HTTPBackend) CreateBooking(ctx context.Context, token string, req BookingRequest) (Booking, error) {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+token)
	if req.IdempotencyKey != "" {
		headers.Set("Idempotency-Key", req.IdempotencyKey)
	}
	body := createBookingBody{
		ProductID: req.ProductID,
		Date:      req.Date,
		StartTime: req.StartTime,
		Notes:     req.Notes,
	}
	var out createBookingResponse
	resp, err := b.do(ctx, http.MethodPost, "/api/v1/bookings", headers, body, &out)
	if err != nil {
		return Booking{}, err
	}
	return Booking{
		ReservationID: out.ReservationID,
		Status:        out.Status,
		CheckoutURL:   out.CheckoutURL,
		Replayed:      resp.Header.Get("Idempotent-Replayed") == "true",
	}, nil
}

func (b *HTTPBackend) do(ctx context.Context, method, path string, headers http.Header, in, out any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var eb httpx.ErrorBody
		if json.Unmarshal(raw, &eb) == nil && eb.Error != "" {
			apiErr.Code = eb.Code
			apiErr.Message = eb.Error
		}
		return resp, apiErr
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp, nil
}
