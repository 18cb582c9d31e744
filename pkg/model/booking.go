package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "PENDING"
	StatusConfirmed BookingStatus = "CONFIRMED"
	StatusPaid      BookingStatus = "PAID"
	StatusCancelled BookingStatus = "CANCELLED"
)

const (
	PaymentStatusPaid = "PAID"

	DefaultRoomName = "Standard Room"
)

// OccupyingStatuses are the statuses that hold a hotel's calendar.
var OccupyingStatuses = []BookingStatus{StatusPending, StatusConfirmed, StatusPaid}

// ReconcilableStatuses may still accept a settlement.
var ReconcilableStatuses = []BookingStatus{StatusPending, StatusConfirmed}

var transitions = map[BookingStatus][]BookingStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusConfirmed, StatusPaid, StatusCancelled},
}

func (s BookingStatus) OccupiesCalendar() bool {
	for _, o := range OccupyingStatuses {
		if s == o {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// HotelID accepts both numeric and string JSON forms.
type HotelID int64

func (h *HotelID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("hotelId must be an integer: %w", err)
	}
	*h = HotelID(n)
	return nil
}

func (h HotelID) String() string {
	return strconv.FormatInt(int64(h), 10)
}

type Booking struct {
	ID              string          `json:"id,omitempty" bson:"_id,omitempty"`
	UserID          string          `json:"userId" bson:"user_id"`
	HotelID         HotelID         `json:"hotelId" bson:"hotel_id"`
	CheckIn         time.Time       `json:"checkIn" bson:"check_in"`
	CheckOut        time.Time       `json:"checkOut" bson:"check_out"`
	Nights          int             `json:"nights" bson:"nights"`
	TotalPrice      int64           `json:"totalPrice" bson:"total_price"`
	Status          BookingStatus   `json:"status" bson:"status"`
	ContactDetails  ContactDetails  `json:"contactDetails" bson:"contact_details"`
	GuestCount      *GuestCount     `json:"guestCount,omitempty" bson:"guest_count,omitempty"`
	BookingSnapshot BookingSnapshot `json:"bookingSnapshot" bson:"booking_snapshot"`
	Payment         *Payment        `json:"payment,omitempty" bson:"payment,omitempty"`
	Notification    Notification    `json:"-" bson:"notification"`
	CreatedAt       time.Time       `json:"createdAt" bson:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" bson:"updated_at"`
}

type ContactDetails struct {
	FullName string `json:"fullName" bson:"full_name" validate:"required,min=2,max=100"`
	Email    string `json:"email" bson:"email" validate:"required,email,max=254"`
	Phone    string `json:"phone" bson:"phone" validate:"required,e164"`
}

type GuestCount struct {
	Adults   int `json:"adults" bson:"adults" validate:"min=1,max=20"`
	Children int `json:"children" bson:"children" validate:"min=0,max=20"`
}

type BookingSnapshot struct {
	Hotel HotelSnapshot `json:"hotel" bson:"hotel"`
	Room  RoomSnapshot  `json:"room" bson:"room"`
}

type HotelSnapshot struct {
	ID      HotelID `json:"id" bson:"id"`
	Name    string  `json:"name" bson:"name"`
	Slug    string  `json:"slug" bson:"slug"`
	Address string  `json:"address,omitempty" bson:"address,omitempty"`
	Image   string  `json:"image,omitempty" bson:"image,omitempty"`
	Stars   int     `json:"stars,omitempty" bson:"stars,omitempty"`
}

type RoomSnapshot struct {
	Name           string `json:"name" bson:"name"`
	PriceAtBooking int64  `json:"priceAtBooking" bson:"price_at_booking"`
}

type Payment struct {
	Status            string    `json:"status" bson:"status"`
	ExternalSessionID string    `json:"externalSessionId" bson:"external_session_id"`
	Amount            *int64    `json:"amount,omitempty" bson:"amount,omitempty"`
	Currency          string    `json:"currency,omitempty" bson:"currency,omitempty"`
	ReconciledAt      time.Time `json:"reconciledAt" bson:"reconciled_at"`
}

// Notification tracks delivery of the booking.created event. It is stored on
// the booking document so that it is written atomically with it.
type Notification struct {
	Published   bool       `bson:"published"`
	Attempts    int        `bson:"attempts"`
	LastError   string     `bson:"last_error,omitempty"`
	PublishedAt *time.Time `bson:"published_at,omitempty"`
}

// CreateBookingRequest is the body of a create call. UserID comes from the
// authenticated identity, never from the body.
type CreateBookingRequest struct {
	UserID         string         `json:"-" validate:"required,max=128"`
	HotelID        HotelID        `json:"hotelId" validate:"required,gt=0"`
	CheckIn        string         `json:"checkIn" validate:"required"`
	CheckOut       string         `json:"checkOut" validate:"required"`
	ContactDetails ContactDetails `json:"contactDetails" validate:"required"`
	GuestCount     *GuestCount    `json:"guestCount,omitempty" validate:"omitempty"`
}

type Availability struct {
	Available        bool        `json:"available"`
	Message          string      `json:"message"`
	ConflictCount    int         `json:"conflictCount,omitempty"`
	ConflictingDates []DateRange `json:"conflictingDates,omitempty"`
}

type DateRange struct {
	CheckIn  time.Time     `json:"checkIn"`
	CheckOut time.Time     `json:"checkOut"`
	Status   BookingStatus `json:"status"`
}
