package model

import (
	"time"

	"github.com/md-rashed-zaman/storefront/libs/slots"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Blocks reports whether a reservation in this status holds its slot.
func (s Status) Blocks() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Reservation is a customer's claim on one slot of one product on one date.
// Rows are never deleted; cancellation only changes Status.
type Reservation struct {
	ID                string
	ProductID         string
	StoreID           string
	CustomerID        string
	BookingDate       time.Time // midnight, date part only
	StartTime         slots.Clock
	EndTime           slots.Clock
	Status            Status
	Notes             string
	CheckoutSessionID string
	CheckoutURL       string
	CancelledAt       *time.Time
	CancelReason      string
	CreatedAt         time.Time
}

func (r Reservation) DateString() string {
	return r.BookingDate.Format(slots.DateLayout)
}
