package availability

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/storefront/libs/slots"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/slotcache"
)

var ErrInvalidDate = errors.New("invalid date")

type Store interface {
	GetProduct(ctx context.Context, productID string) (model.Product, error)
	UpsertProduct(ctx context.Context, p model.Product) (model.Product, error)
	ReservedStarts(ctx context.Context, productID string, date time.Time) ([]slots.Clock, error)
}

// Day is the availability of one product on one store-local date.
type Day struct {
	ProductID string
	Date      string
	Timezone  string
	// Eligible is false for past dates and weekdays outside the pattern; Slots is then empty.
	Eligible bool
	Slots    []slots.Annotated
}

type Service struct {
	store   Store
	cache   *slotcache.Cache
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(store Store, cache *slotcache.Cache, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{store: store, cache: cache, metrics: m, logger: logger, now: time.Now}
}

func (s *Service) Product(ctx context.Context, productID string) (model.Product, error) {
	return s.store.GetProduct(ctx, productID)
}

// SaveProduct validates and stores a product's booking settings, then drops every cached
// day of the product. Existing reservations are kept even when their slot leaves the pattern.
func (s *Service) SaveProduct(ctx context.Context, p model.Product) (model.Product, error) {
	if err := p.Pattern.Validate(); err != nil {
		return model.Product{}, err
	}
	if p.Timezone == "" {
		p.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return model.Product{}, &slots.ValidationError{Problems: []string{"unknown timezone " + p.Timezone}}
	}
	saved, err := s.store.UpsertProduct(ctx, p)
	if err != nil {
		return model.Product{}, err
	}
	if err := s.cache.InvalidateProduct(ctx, p.ProductID); err != nil {
		s.logger.Warn("slot cache invalidation failed", "err", err, "product_id", p.ProductID)
	}
	return saved, nil
}

// Slots generates the product's candidate slots for date and marks those held by live
// reservations. Cache failures are logged and fall through to the database.
func (s *Service) Slots(ctx context.Context, productID, date string) (Day, error) {
	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return Day{}, err
	}
	loc := product.Location()
	day, err := slots.ParseDate(date, loc)
	if err != nil {
		return Day{}, errors.Join(ErrInvalidDate, err)
	}

	out := Day{ProductID: productID, Date: date, Timezone: loc.String(), Slots: []slots.Annotated{}}
	if slots.IsPast(day, s.now(), loc) || !product.Pattern.AllowsWeekday(day.Weekday()) {
		return out, nil
	}
	out.Eligible = true

	token, err := s.cache.Token(ctx, productID, date)
	if err != nil {
		s.logger.Warn("slot cache token failed", "err", err, "product_id", productID)
		token = ""
	}
	if cached, ok, err := s.cache.Get(ctx, productID, date, token); err != nil {
		s.logger.Warn("slot cache read failed", "err", err, "product_id", productID)
	} else if ok {
		s.metrics.ObserveResolution(metrics.SourceCache)
		out.Slots = cached
		return out, nil
	}

	reserved, err := s.store.ReservedStarts(ctx, productID, day)
	if err != nil {
		return Day{}, err
	}
	out.Slots = slots.Annotate(slots.Generate(product.Pattern), reserved)
	s.metrics.ObserveResolution(metrics.SourceDB)

	if err := s.cache.Put(ctx, productID, date, token, out.Slots); err != nil {
		s.logger.Warn("slot cache write failed", "err", err, "product_id", productID)
	}
	return out, nil
}

// ReservedStarts returns the start times held by non-cancelled reservations, unannotated.
func (s *Service) ReservedStarts(ctx context.Context, productID, date string) ([]slots.Clock, error) {
	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	day, err := slots.ParseDate(date, product.Location())
	if err != nil {
		return nil, errors.Join(ErrInvalidDate, err)
	}
	return s.store.ReservedStarts(ctx, productID, day)
}
