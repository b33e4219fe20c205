package bookingclient

import (
	"time"

	"github.com/md-rashed-zaman/storefront/libs/slots"
)

// BookingSession carries everything a presenter needs about who is booking what. It replaces
// implicit component state: one session per product page, passed explicitly.
type BookingSession struct {
	ProductID string
	Pattern   slots.Pattern
	// Location is the store's timezone; dates are calendar days there. Nil means UTC.
	Location *time.Location
	// Token is the customer's bearer token. Empty means signed out.
	Token string
}

// SessionForProduct builds a session from a product returned by Backend.GetProduct.
func SessionForProduct(p Product, token string) *BookingSession {
	return &BookingSession{ProductID: p.ID, Pattern: p.Pattern, Location: p.Location, Token: token}
}

func (s *BookingSession) Authenticated() bool {
	return s != nil && s.Token != ""
}

func (s *BookingSession) location() *time.Location {
	if s == nil || s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// Selectable reports whether date can be picked: not before today in the store's timezone and
// on one of the pattern's weekdays.
func (s *BookingSession) Selectable(date, now time.Time) bool {
	loc := s.location()
	if slots.IsPast(date, now, loc) {
		return false
	}
	return s.Pattern.AllowsWeekday(date.In(loc).Weekday())
}
