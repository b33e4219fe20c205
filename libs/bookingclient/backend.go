package bookingclient

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/storefront/libs/slots"
)

// Backend is the remote persistence and query service the client library talks to.
type Backend interface {
	// GetAvailableSlots returns slots for the date already annotated by the server.
	GetAvailableSlots(ctx context.Context, productID, date string) ([]slots.Annotated, error)
	// ListReservedStarts returns the start times of non-cancelled reservations on the date.
	ListReservedStarts(ctx context.Context, productID, date string) ([]slots.Clock, error)
	// CreateBooking atomically re-validates the slot and inserts the reservation.
	CreateBooking(ctx context.Context, token string, req BookingRequest) (Booking, error)
	// GetProduct returns the product's availability pattern and store timezone.
	GetProduct(ctx context.Context, productID string) (Product, error)
}

type BookingRequest struct {
	ProductID      string
	Date           string
	StartTime      string
	Notes          string
	IdempotencyKey string
}

type Booking struct {
	ReservationID string
	Status        string
	CheckoutURL   string
	Replayed      bool
}

type Product struct {
	ID         string
	StoreID    string
	Title      string
	PriceCents int64
	Currency   string
	Pattern    slots.Pattern
	Location   *time.Location
}
