package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"
)

const ProviderStripe = "stripe"

var (
	ErrDisabled         = errors.New("payments: not configured")
	ErrInvalidSignature = errors.New("payments: invalid webhook signature")
)

type CheckoutRequest struct {
	ReservationID  string
	ProductID      string
	Title          string
	AmountCents    int64
	Currency       string
	CustomerID     string
	IdempotencyKey string
}

type Checkout struct {
	SessionID string
	URL       string
}

// Gateway creates hosted checkout pages for pending reservations.
type Gateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error)
}

type StripeConfig struct {
	SecretKey  string
	SuccessURL string
	CancelURL  string
	// ExpiresAfter bounds how long a pending reservation holds its slot unpaid.
	// Stripe requires between 30 minutes and 24 hours.
	ExpiresAfter time.Duration
}

type StripeGateway struct {
	client     checkoutsession.Client
	successURL string
	cancelURL  string
	expires    time.Duration
}

// NewStripeGateway returns nil when no secret key is configured.
func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil
	}
	if cfg.ExpiresAfter < 30*time.Minute {
		cfg.ExpiresAfter = 30 * time.Minute
	}
	return &StripeGateway{
		client:     checkoutsession.Client{B: stripe.GetBackend(stripe.APIBackend), Key: cfg.SecretKey},
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		expires:    cfg.ExpiresAfter,
	}
}

func (g *StripeGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error) {
	if g == nil {
		return Checkout{}, ErrDisabled
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(g.successURL),
		CancelURL:         stripe.String(g.cancelURL),
		ClientReferenceID: stripe.String(req.CustomerID),
		ExpiresAt:         stripe.Int64(time.Now().Add(g.expires).Unix()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(req.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Title),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"reservation_id": req.ReservationID,
			"product_id":     req.ProductID,
		},
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String("checkout:" + req.IdempotencyKey)
	}

	sess, err := g.client.New(params)
	if err != nil {
		return Checkout{}, fmt.Errorf("stripe checkout session: %w", err)
	}
	return Checkout{SessionID: sess.ID, URL: sess.URL}, nil
}

// EventKind is the reservation-relevant meaning of a provider event.
type EventKind string

const (
	EventIgnored   EventKind = ""
	EventPaid      EventKind = "paid"
	EventAbandoned EventKind = "abandoned"
)

type Event struct {
	Provider      string
	ID            string
	Type          string
	Kind          EventKind
	ReservationID string
	SessionID     string
	OccurredAt    time.Time
	Payload       []byte
}

// ParseStripeEvent verifies the Stripe-Signature header and extracts the reservation the
// checkout session belongs to. Endpoints follow the account's API version, so a version
// different from the library's is accepted; only checkout session fields are read.
func ParseStripeEvent(body []byte, sigHeader, secret string, tolerance time.Duration) (Event, error) {
	evt, err := webhook.ConstructEventWithOptions(body, sigHeader, secret, webhook.ConstructEventOptions{
		Tolerance:                tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, errors.Join(ErrInvalidSignature, err)
	}
	out := Event{
		Provider:   ProviderStripe,
		ID:         evt.ID,
		Type:       string(evt.Type),
		OccurredAt: time.Unix(evt.Created, 0).UTC(),
		Payload:    body,
	}
	switch out.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		out.Kind = EventPaid
	case "checkout.session.expired", "checkout.session.async_payment_failed":
		out.Kind = EventAbandoned
	default:
		return out, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &sess); err != nil {
		return Event{}, fmt.Errorf("stripe: invalid checkout session payload: %w", err)
	}
	out.SessionID = sess.ID
	out.ReservationID = strings.TrimSpace(sess.Metadata["reservation_id"])
	if out.Kind == EventPaid && out.Type == "checkout.session.completed" && sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		// Delayed payment methods complete the session before the money arrives.
		out.Kind = EventIgnored
	}
	return out, nil
}
