package availability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/storefront/libs/slots"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/storage"
)

type fakeStore struct {
	products map[string]model.Product
	reserved map[string][]slots.Clock
	queries  int
}

func (f *fakeStore) GetProduct(ctx context.Context, productID string) (model.Product, error) {
	p, ok := f.products[productID]
	if !ok {
		return model.Product{}, storage.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) UpsertProduct(ctx context.Context, p model.Product) (model.Product, error) {
	if existing, ok := f.products[p.ProductID]; ok && existing.StoreID != p.StoreID {
		return model.Product{}, storage.ErrNotFound
	}
	f.products[p.ProductID] = p
	return p, nil
}

func (f *fakeStore) ReservedStarts(ctx context.Context, productID string, date time.Time) ([]slots.Clock, error) {
	f.queries++
	return f.reserved[productID+"|"+date.Format(slots.DateLayout)], nil
}

func newTestService(store *fakeStore) *Service {
	s := NewService(store, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func coachingCall() model.Product {
	pattern, err := slots.ParsePattern([]string{"monday", "wednesday"}, []string{"09:00", "14:00"}, 30)
	if err != nil {
		panic(err)
	}
	return model.Product{ProductID: "p1", StoreID: "s1", Timezone: "UTC", Pattern: pattern}
}

func TestSlotsAnnotatesReservedStarts(t *testing.T) {
	store := &fakeStore{
		products: map[string]model.Product{"p1": coachingCall()},
		reserved: map[string][]slots.Clock{"p1|2025-03-10": {slots.MustParseClock("09:00")}},
	}
	svc := newTestService(store)

	day, err := svc.Slots(context.Background(), "p1", "2025-03-10")
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	if !day.Eligible {
		t.Fatal("expected monday to be eligible")
	}
	if len(day.Slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(day.Slots))
	}
	if day.Slots[0].Start.String() != "09:00" || day.Slots[0].End.String() != "09:30" || day.Slots[0].Available {
		t.Fatalf("expected 09:00-09:30 unavailable, got %+v", day.Slots[0])
	}
	if day.Slots[1].Start.String() != "14:00" || !day.Slots[1].Available {
		t.Fatalf("expected 14:00 available, got %+v", day.Slots[1])
	}
}

func TestSlotsIneligibleDates(t *testing.T) {
	store := &fakeStore{products: map[string]model.Product{"p1": coachingCall()}}
	svc := newTestService(store)

	tuesday, err := svc.Slots(context.Background(), "p1", "2025-03-11")
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	if tuesday.Eligible || len(tuesday.Slots) != 0 {
		t.Fatalf("expected tuesday to be ineligible and empty, got %+v", tuesday)
	}
	past, err := svc.Slots(context.Background(), "p1", "2025-02-24")
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	if past.Eligible {
		t.Fatal("expected past monday to be ineligible")
	}
	if store.queries != 0 {
		t.Fatalf("expected no reservation queries for ineligible dates, got %d", store.queries)
	}
}

func TestSlotsErrors(t *testing.T) {
	svc := newTestService(&fakeStore{products: map[string]model.Product{"p1": coachingCall()}})

	if _, err := svc.Slots(context.Background(), "p1", "10/03/2025"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
	if _, err := svc.Slots(context.Background(), "missing", "2025-03-10"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	store := &fakeStore{
		products: map[string]model.Product{"p1": coachingCall()},
		reserved: map[string][]slots.Clock{"p1|2025-03-12": {slots.MustParseClock("14:00")}},
	}
	svc := newTestService(store)
	a, _ := svc.Slots(context.Background(), "p1", "2025-03-12")
	b, _ := svc.Slots(context.Background(), "p1", "2025-03-12")
	if len(a.Slots) != len(b.Slots) {
		t.Fatalf("expected equal results, got %d and %d", len(a.Slots), len(b.Slots))
	}
	for i := range a.Slots {
		if a.Slots[i] != b.Slots[i] {
			t.Fatalf("slot %d differs: %+v vs %+v", i, a.Slots[i], b.Slots[i])
		}
	}
}

func TestSaveProductValidates(t *testing.T) {
	store := &fakeStore{products: map[string]model.Product{}}
	svc := newTestService(store)

	bad := coachingCall()
	bad.Pattern.Starts = append(bad.Pattern.Starts, slots.MustParseClock("23:45"))
	var ve *slots.ValidationError
	if _, err := svc.SaveProduct(context.Background(), bad); !errors.As(err, &ve) {
		t.Fatalf("expected pattern validation error, got %v", err)
	}

	zone := coachingCall()
	zone.Timezone = "Mars/Olympus"
	if _, err := svc.SaveProduct(context.Background(), zone); !errors.As(err, &ve) {
		t.Fatalf("expected timezone validation error, got %v", err)
	}

	saved, err := svc.SaveProduct(context.Background(), coachingCall())
	if err != nil {
		t.Fatalf("SaveProduct: %v", err)
	}
	if saved.ProductID != "p1" || len(store.products) != 1 {
		t.Fatalf("expected product to be stored, got %+v", saved)
	}

	foreign := coachingCall()
	foreign.StoreID = "s2"
	if _, err := svc.SaveProduct(context.Background(), foreign); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another store's product, got %v", err)
	}
}
