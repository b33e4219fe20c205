package reservations

import (
	"encoding/json"
	"time"

	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/outbox"
)

type reservationEvent struct {
	ReservationID string    `json:"reservation_id"`
	ProductID     string    `json:"product_id"`
	StoreID       string    `json:"store_id"`
	CustomerID    string    `json:"customer_id"`
	BookingDate   string    `json:"booking_date"`
	StartTime     string    `json:"start_time"`
	EndTime       string    `json:"end_time"`
	Status        string    `json:"status"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func newEvent(eventType string, r model.Reservation, reason string, at time.Time) (outbox.Event, error) {
	payload, err := json.Marshal(reservationEvent{
		ReservationID: r.ID,
		ProductID:     r.ProductID,
		StoreID:       r.StoreID,
		CustomerID:    r.CustomerID,
		BookingDate:   r.DateString(),
		StartTime:     r.StartTime.String(),
		EndTime:       r.EndTime.String(),
		Status:        string(r.Status),
		Reason:        reason,
		OccurredAt:    at.UTC(),
	})
	if err != nil {
		return outbox.Event{}, err
	}
	return outbox.Event{
		AggregateType: outbox.AggregateReservation,
		AggregateID:   r.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}
