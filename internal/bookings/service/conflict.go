package service

import (
	"context"
	"fmt"
	"time"

	"stazy/internal/bookings/repository"
	"stazy/pkg/model"
)

// maxConflictsReported caps how many overlapping bookings an availability
// answer lists.
const maxConflictsReported = 20

// ConflictDetector answers whether a hotel's calendar is free over a stay.
// A booking conflicts with [checkIn, checkOut) when it occupies the calendar
// and its own half-open stay intersects the requested one.
type ConflictDetector struct {
	repo repository.BookingRepository
}

func NewConflictDetector(repo repository.BookingRepository) *ConflictDetector {
	return &ConflictDetector{repo: repo}
}

// FindConflicts returns up to limit occupying bookings overlapping the stay.
func (d *ConflictDetector) FindConflicts(ctx context.Context, hotelID model.HotelID, checkIn, checkOut time.Time, limit int) ([]*model.Booking, error) {
	candidates, err := d.repo.FindOverlapping(ctx, hotelID, checkIn, checkOut, model.OccupyingStatuses, limit)
	if err != nil {
		return nil, fmt.Errorf("conflict query for hotel %s: %w", hotelID, err)
	}

	conflicts := candidates[:0]
	for _, b := range candidates {
		if b.Status.OccupiesCalendar() && Overlaps(b.CheckIn, b.CheckOut, checkIn, checkOut) {
			conflicts = append(conflicts, b)
		}
	}
	return conflicts, nil
}

func (d *ConflictDetector) HasConflict(ctx context.Context, hotelID model.HotelID, checkIn, checkOut time.Time) (bool, error) {
	conflicts, err := d.FindConflicts(ctx, hotelID, checkIn, checkOut, 1)
	if err != nil {
		return false, err
	}
	return len(conflicts) > 0, nil
}

// Overlaps is the half-open interval test: back-to-back stays do not overlap.
func Overlaps(start1, end1, start2, end2 time.Time) bool {
	return start1.Before(end2) && end1.After(start2)
}
