// Package events defines the booking domain events exchanged over Kafka.
package events

import (
	"time"

	"stazy/pkg/model"
)

const (
	TypeBookingCreated    = "booking.created"
	TypePaymentSuccessful = "payment.successful"

	SchemaVersion = "1"
)

// BookingCreated is published once a booking is durably written.
type BookingCreated struct {
	BookingID  string              `json:"bookingId"`
	UserID     string              `json:"userId"`
	Email      string              `json:"email"`
	TotalPrice int64               `json:"totalPrice"`
	HotelName  string              `json:"hotelName"`
	Status     model.BookingStatus `json:"status"`
	HotelID    model.HotelID       `json:"hotelId"`
	CheckIn    time.Time           `json:"checkIn"`
	CheckOut   time.Time           `json:"checkOut"`
	Nights     int                 `json:"nights"`
}

func NewBookingCreated(b *model.Booking) BookingCreated {
	return BookingCreated{
		BookingID:  b.ID,
		UserID:     b.UserID,
		Email:      b.ContactDetails.Email,
		TotalPrice: b.TotalPrice,
		HotelName:  b.BookingSnapshot.Hotel.Name,
		Status:     b.Status,
		HotelID:    b.HotelID,
		CheckIn:    b.CheckIn,
		CheckOut:   b.CheckOut,
		Nights:     b.Nights,
	}
}

// EventID is stable per booking so that a republished notification can be
// deduplicated downstream.
func (e BookingCreated) EventID() string {
	return TypeBookingCreated + ":" + e.BookingID
}

// Settlement is a payment confirmation reported by the payment service.
type Settlement struct {
	BookingID string
	SessionID string
	Amount    *int64
	Currency  string
	UserID    string
}
