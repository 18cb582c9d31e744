package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrStateConflict means a conditional status update matched the id but
	// not the expected status.
	ErrStateConflict = errors.New("booking is not in an updatable state")

	ErrInvalidDateRange = errors.New("check-out must be after check-in")

	ErrStayTooLong = errors.New("stay exceeds the maximum number of nights")
)
