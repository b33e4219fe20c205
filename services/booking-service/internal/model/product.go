package model

import (
	"time"

	"github.com/md-rashed-zaman/storefront/libs/slots"
)

// Product is the booking view of a creator's bookable product (1:1 call, webinar seat, ...).
// Catalog data such as descriptions lives with the storefront; only what booking needs is kept.
type Product struct {
	ProductID  string
	StoreID    string
	Title      string
	Timezone   string
	Pattern    slots.Pattern
	PriceCents int64
	Currency   string
	UpdatedAt  time.Time
}

// Location returns the store time zone; unknown or empty zones fall back to UTC.
func (p Product) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (p Product) IsPaid() bool {
	return p.PriceCents > 0
}
