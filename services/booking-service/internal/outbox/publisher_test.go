package outbox

import (
	"context"
	"testing"

	"github.com/md-rashed-zaman/storefront/libs/kafkax"
)

func TestToMessage(t *testing.T) {
	msg := toMessage(context.Background(), Record{
		ID:            7,
		EventID:       "6c1d6c55-8d7c-4a6e-9d8e-3c9f6f1f1a11",
		AggregateType: AggregateReservation,
		AggregateID:   "res-1",
		EventType:     EventReservationCreated,
		Payload:       []byte(`{"reservation_id":"res-1"}`),
	})
	if msg.Topic != EventReservationCreated {
		t.Fatalf("expected topic %s, got %s", EventReservationCreated, msg.Topic)
	}
	if string(msg.Key) != "res-1" {
		t.Fatalf("expected aggregate id as key, got %s", msg.Key)
	}
	if kafkax.HeaderValue(msg.Headers, "event_id") != "6c1d6c55-8d7c-4a6e-9d8e-3c9f6f1f1a11" {
		t.Fatal("expected event_id header")
	}
	if kafkax.HeaderValue(msg.Headers, "aggregate_type") != AggregateReservation {
		t.Fatal("expected aggregate_type header")
	}
}
