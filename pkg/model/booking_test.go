package model

import (
	"encoding/json"
	"testing"
)

func TestBookingStatus_Transitions(t *testing.T) {
	tests := []struct {
		from BookingStatus
		to   BookingStatus
		want bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusPaid, false},
		{StatusConfirmed, StatusConfirmed, true},
		{StatusConfirmed, StatusPaid, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusPaid, StatusConfirmed, false},
		{StatusPaid, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusConfirmed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBookingStatus_OccupiesCalendar(t *testing.T) {
	for _, s := range []BookingStatus{StatusPending, StatusConfirmed, StatusPaid} {
		if !s.OccupiesCalendar() {
			t.Errorf("%s should occupy the calendar", s)
		}
	}
	if StatusCancelled.OccupiesCalendar() {
		t.Error("CANCELLED must not occupy the calendar")
	}
}

func TestHotelID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    HotelID
		wantErr bool
	}{
		{"number", `{"hotelId": 42}`, 42, false},
		{"string", `{"hotelId": "42"}`, 42, false},
		{"float", `{"hotelId": 4.2}`, 0, true},
		{"word", `{"hotelId": "abc"}`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req CreateBookingRequest
			err := json.Unmarshal([]byte(tt.input), &req)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if req.HotelID != tt.want {
				t.Errorf("HotelID = %d, want %d", req.HotelID, tt.want)
			}
		})
	}
}

func TestBooking_NotificationHiddenFromJSON(t *testing.T) {
	b := Booking{ID: "x", Notification: Notification{Published: true, Attempts: 3}}
	data, err := json.Marshal(b)
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]any
	_ = json.Unmarshal(data, &out)
	if _, ok := out["notification"]; ok {
		t.Error("notification state should not be exposed")
	}
}
