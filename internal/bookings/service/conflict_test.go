package service

import (
	"context"
	"testing"

	"stazy/internal/bookings/repository/repotest"
	"stazy/pkg/model"
)

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name         string
		start1, end1 string
		start2, end2 string
		want         bool
	}{
		{"adjacent after", "2026-02-01", "2026-02-05", "2026-02-05", "2026-02-08", false},
		{"adjacent before", "2026-02-01", "2026-02-05", "2026-01-01", "2026-02-01", false},
		{"overlap tail", "2026-02-01", "2026-02-05", "2026-02-04", "2026-02-06", true},
		{"overlap head", "2026-02-01", "2026-02-05", "2026-01-30", "2026-02-02", true},
		{"contained", "2026-02-01", "2026-02-05", "2026-02-02", "2026-02-03", true},
		{"disjoint", "2026-02-01", "2026-02-05", "2026-03-01", "2026-03-05", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Overlaps(date(tt.start1), date(tt.end1), date(tt.start2), date(tt.end2))
			if got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
			if sym := Overlaps(date(tt.start2), date(tt.end2), date(tt.start1), date(tt.end1)); sym != got {
				t.Errorf("Overlaps is not symmetric for %s", tt.name)
			}
		})
	}
}

func TestConflictDetector_IgnoresCancelledAndOtherHotels(t *testing.T) {
	repo := repotest.NewMemory()
	repo.Put(&model.Booking{HotelID: testHotelID, CheckIn: date("2026-02-01"), CheckOut: date("2026-02-05"), Status: model.StatusCancelled})
	repo.Put(&model.Booking{HotelID: 99, CheckIn: date("2026-02-01"), CheckOut: date("2026-02-05"), Status: model.StatusPaid})
	d := NewConflictDetector(repo)

	conflict, err := d.HasConflict(context.Background(), testHotelID, date("2026-02-02"), date("2026-02-03"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conflict {
		t.Error("expected no conflict")
	}

	repo.Put(&model.Booking{HotelID: testHotelID, CheckIn: date("2026-02-02"), CheckOut: date("2026-02-04"), Status: model.StatusPending})
	conflict, err = d.HasConflict(context.Background(), testHotelID, date("2026-02-03"), date("2026-02-06"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !conflict {
		t.Error("expected a conflict with the pending booking")
	}
}
