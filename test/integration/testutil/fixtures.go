package testutil

import (
	"testing"
	"time"

	"stazy/internal/pricing"
	"stazy/pkg/model"
)

// Date parses a YYYY-MM-DD fixture date as a calendar date.
func Date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := pricing.ParseCalendarDate(s)
	if err != nil {
		t.Fatalf("bad fixture date %q: %v", s, err)
	}
	return d
}

// NewBooking returns a booking that satisfies the collection validator.
func NewBooking(t *testing.T, hotelID model.HotelID, checkIn, checkOut string, status model.BookingStatus) *model.Booking {
	t.Helper()

	in, out := Date(t, checkIn), Date(t, checkOut)
	quote := pricing.NewQuote(in, out, 100000)
	return &model.Booking{
		UserID:     "user_it",
		HotelID:    hotelID,
		CheckIn:    quote.CheckIn,
		CheckOut:   quote.CheckOut,
		Nights:     quote.Nights,
		TotalPrice: quote.Total,
		Status:     status,
		ContactDetails: model.ContactDetails{
			FullName: "Dana Levi",
			Email:    "dana@example.com",
			Phone:    "+14155550100",
		},
		BookingSnapshot: model.BookingSnapshot{
			Hotel: model.HotelSnapshot{ID: hotelID, Name: "Sea View", Slug: "sea-view"},
			Room:  model.RoomSnapshot{Name: "Standard", PriceAtBooking: 100000},
		},
	}
}
