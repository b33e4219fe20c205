package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (one topic per event type).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	AggregateReservation = "reservation"

	EventReservationCreated   = "booking.reservation.created.v1"
	EventReservationConfirmed = "booking.reservation.confirmed.v1"
	EventReservationCancelled = "booking.reservation.cancelled.v1"
)
