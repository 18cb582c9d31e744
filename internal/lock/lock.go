// Package lock provides short-lived mutual-exclusion leases keyed by a
// resource name, with Mongo, Redis and in-process backends.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stazy/internal/pricing"
	"stazy/pkg/model"
)

var (
	// ErrBusy means the lease could not be obtained within the bounded wait.
	ErrBusy = errors.New("resource is held by another request")

	ErrNotHeld = errors.New("lease is not held by this token")
)

// Locker is a single lease backend. TryAcquire must be one atomic
// set-if-absent-with-ttl and must never block waiting for the holder.
type Locker interface {
	TryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, token string) (bool, error)
	Name() string
}

const keyPrefix = "locks:hotel"

// HotelKeys returns the lease keys serializing writers for a hotel's calendar
// over [checkIn, checkOut): one key per month bucket touched by a night.
func HotelKeys(hotelID model.HotelID, checkIn, checkOut time.Time) []string {
	buckets := pricing.MonthBuckets(checkIn, checkOut)
	keys := make([]string, 0, len(buckets))
	for _, b := range buckets {
		keys = append(keys, fmt.Sprintf("%s:%d:%s", keyPrefix, hotelID, b))
	}
	return keys
}
