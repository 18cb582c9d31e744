// Package pricing holds the date arithmetic shared by the booking flow.
//
// Check-in and check-out are calendar dates. They are pinned to 00:00 UTC of
// the date the client wrote, so a client's timezone offset never shifts a stay
// by a day.
package pricing

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const Day = 24 * time.Hour

const DateLayout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid calendar date")

// CalendarDate pins t to midnight UTC of the calendar date it carries in its
// own location.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseCalendarDate accepts YYYY-MM-DD or RFC3339. For RFC3339 the date part
// as written is used and the clock and offset are dropped.
func ParseCalendarDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return CalendarDate(t), nil
}

// Nights is ceil((checkOut - checkIn) / 1 day). Zero or negative means the
// range is empty or inverted.
func Nights(checkIn, checkOut time.Time) int {
	diff := checkOut.Sub(checkIn)
	if diff <= 0 {
		return int(diff / Day)
	}
	n := diff / Day
	if diff%Day != 0 {
		n++
	}
	return int(n)
}

func TotalPrice(nightlyRate int64, nights int) int64 {
	return nightlyRate * int64(nights)
}

// Quote is the frozen price of a stay.
type Quote struct {
	CheckIn     time.Time
	CheckOut    time.Time
	Nights      int
	NightlyRate int64
	Total       int64
}

func NewQuote(checkIn, checkOut time.Time, nightlyRate int64) Quote {
	checkIn, checkOut = CalendarDate(checkIn), CalendarDate(checkOut)
	nights := Nights(checkIn, checkOut)
	return Quote{
		CheckIn:     checkIn,
		CheckOut:    checkOut,
		Nights:      nights,
		NightlyRate: nightlyRate,
		Total:       TotalPrice(nightlyRate, nights),
	}
}

// MonthBuckets lists every YYYY-MM that a night of [checkIn, checkOut) falls
// in, in ascending order.
func MonthBuckets(checkIn, checkOut time.Time) []string {
	checkIn, checkOut = CalendarDate(checkIn), CalendarDate(checkOut)
	if !checkOut.After(checkIn) {
		return nil
	}
	lastNight := checkOut.Add(-Day)

	var buckets []string
	cur := time.Date(checkIn.Year(), checkIn.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cur.After(lastNight) {
		buckets = append(buckets, cur.Format("2006-01"))
		cur = cur.AddDate(0, 1, 0)
	}
	return buckets
}
