package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			appErr:   &AppError{Code: CodeNotFound, Message: "booking not found"},
			expected: "NOT_FOUND: booking not found",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodeInternal,
				Message: "internal error",
				Err:     errors.New("database connection failed"),
			},
			expected: "INTERNAL_ERROR: internal error (caused by: database connection failed)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appErr.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestConstructors(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")

	tests := []struct {
		name   string
		err    *AppError
		code   string
		status int
	}{
		{"not found with id", NotFoundWithID("Booking", "abc"), CodeNotFound, http.StatusNotFound},
		{"unknown reference", UnknownReference("Hotel", "42"), CodeNotFound, http.StatusBadRequest},
		{"validation", Validation("bad dates", nil), CodeValidation, http.StatusBadRequest},
		{"invalid input", InvalidInput("bad id"), CodeInvalidInput, http.StatusBadRequest},
		{"unauthorized", Unauthorized("missing identity"), CodeUnauthorized, http.StatusUnauthorized},
		{"forbidden", Forbidden("not owner"), CodeForbidden, http.StatusForbidden},
		{"conflict", Conflict("terminal state"), CodeConflict, http.StatusConflict},
		{"already booked", AlreadyBooked("dates taken"), CodeAlreadyBooked, http.StatusConflict},
		{"resource busy", ResourceBusy("lock held"), CodeResourceBusy, http.StatusConflict},
		{"internal", Internal("boom", cause), CodeInternal, http.StatusInternalServerError},
		{"upstream unavailable", UpstreamUnavailable("Catalog service", cause), CodeUpstreamUnavailable, http.StatusInternalServerError},
		{"timeout", Timeout("too slow"), CodeTimeout, http.StatusGatewayTimeout},
		{"payload too large", PayloadTooLarge(), CodePayloadTooLarge, http.StatusRequestEntityTooLarge},
		{"unsupported media type", UnsupportedMediaType("json only"), CodeUnsupportedMediaType, http.StatusUnsupportedMediaType},
		{"rate limited", RateLimited(), CodeRateLimited, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, tt.err.Code)
			}
			if tt.err.StatusCode() != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, tt.err.StatusCode())
			}
		})
	}
}

func TestConflictClass(t *testing.T) {
	if !AlreadyBooked("x").IsConflictClass() {
		t.Error("AlreadyBooked should be conflict class")
	}
	if !ResourceBusy("x").IsConflictClass() {
		t.Error("ResourceBusy should be conflict class")
	}
	if Validation("x", nil).IsConflictClass() {
		t.Error("Validation should not be conflict class")
	}
}

func TestAppError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	appErr := UpstreamUnavailable("Booking store", originalErr)

	if !errors.Is(appErr, originalErr) {
		t.Errorf("errors.Is should reach the original error")
	}
}

func TestAppError_WithDetails(t *testing.T) {
	err := Validation("validation failed", nil).WithDetails(map[string]any{"field": "checkOut"})

	if err.Details["field"] != "checkOut" {
		t.Errorf("expected field 'checkOut', got %v", err.Details["field"])
	}
}

func TestUnknownReference_Details(t *testing.T) {
	err := UnknownReference("Hotel", "42")

	if err.Details["id"] != "42" || err.Details["resource"] != "Hotel" {
		t.Errorf("unexpected details: %v", err.Details)
	}
	if err.Message != "Hotel not found" {
		t.Errorf("unexpected message: %s", err.Message)
	}
}

func TestIsAppError(t *testing.T) {
	appErr := NotFoundWithID("Booking", "abc")
	wrapped := fmt.Errorf("service: %w", appErr)

	if !IsAppError(appErr) {
		t.Errorf("IsAppError() should return true for AppError")
	}
	if !IsAppError(wrapped) {
		t.Errorf("IsAppError() should see through fmt wrapping")
	}
	if IsAppError(errors.New("regular error")) {
		t.Errorf("IsAppError() should return false for regular error")
	}
}

func TestAsAppError(t *testing.T) {
	appErr := ResourceBusy("held")
	regularErr := errors.New("regular error")

	if AsAppError(fmt.Errorf("ctx: %w", appErr)) != appErr {
		t.Errorf("AsAppError() should return the wrapped AppError")
	}

	result := AsAppError(regularErr)
	if result.Code != CodeInternal {
		t.Errorf("AsAppError() should wrap regular error as internal error")
	}
	if result.Err != regularErr {
		t.Errorf("AsAppError() should wrap the original error")
	}
}

func TestAppError_JSONHidesCause(t *testing.T) {
	data, err := json.Marshal(Internal("boom", errors.New("mongo: password rejected")))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "password") {
		t.Errorf("cause leaked into JSON: %s", data)
	}
	if !strings.Contains(string(data), CodeInternal) {
		t.Errorf("code missing from JSON: %s", data)
	}
}
