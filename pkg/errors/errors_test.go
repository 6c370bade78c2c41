package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
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
			appErr:   &AppError{Code: CodeNotFound, Message: "resource not found"},
			expected: "NOT_FOUND: resource not found",
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

func TestConstructors_StatusCodes(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name   string
		err    *AppError
		code   string
		status int
	}{
		{"not found", NotFound("Station"), CodeNotFound, http.StatusNotFound},
		{"not found with id", NotFoundWithID("Booking", "b-1"), CodeNotFound, http.StatusNotFound},
		{"validation", Validation("bad", nil), CodeValidation, http.StatusUnprocessableEntity},
		{"invalid input", InvalidInput("bad"), CodeInvalidInput, http.StatusBadRequest},
		{"conflict", Conflict("taken"), CodeConflict, http.StatusConflict},
		{"payment", PaymentNotCompleted("pi_1"), CodePaymentRequired, http.StatusBadRequest},
		{"upstream", Upstream("Stripe", cause), CodeUpstream, http.StatusBadGateway},
		{"internal", Internal("oops", cause), CodeInternal, http.StatusInternalServerError},
		{"timeout", Timeout("slow"), CodeTimeout, http.StatusGatewayTimeout},
		{"unavailable", Unavailable("Stripe"), CodeUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("code = %s, want %s", tt.err.Code, tt.code)
			}
			if tt.err.StatusCode() != tt.status {
				t.Errorf("status = %d, want %d", tt.err.StatusCode(), tt.status)
			}
		})
	}
}

func TestNotFoundWithID_Details(t *testing.T) {
	err := NotFoundWithID("Booking", "abc")

	if err.Message != "Booking not found" {
		t.Errorf("unexpected message %q", err.Message)
	}
	if err.Details["id"] != "abc" || err.Details["resource"] != "Booking" {
		t.Errorf("unexpected details %v", err.Details)
	}
}

func TestAsAppError(t *testing.T) {
	t.Run("wrapped app error is found", func(t *testing.T) {
		original := Conflict("slot taken")
		wrapped := fmt.Errorf("create: %w", original)

		if got := AsAppError(wrapped); got != original {
			t.Errorf("AsAppError() = %v, want %v", got, original)
		}
		if !IsAppError(wrapped) {
			t.Error("IsAppError() should see through wrapping")
		}
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		plain := errors.New("plain")
		got := AsAppError(plain)

		if got.Code != CodeInternal {
			t.Errorf("code = %s, want %s", got.Code, CodeInternal)
		}
		if !errors.Is(got, plain) {
			t.Error("internal error should wrap the original")
		}
	})
}

func TestAppError_ToJSON(t *testing.T) {
	err := InvalidInput("bad date").WithDetails(map[string]any{"field": "date"})

	var decoded ErrorResponse
	if jsonErr := json.Unmarshal(err.ToJSON(), &decoded); jsonErr != nil {
		t.Fatalf("ToJSON produced invalid JSON: %v", jsonErr)
	}
	if decoded.Code != CodeInvalidInput || decoded.Message != "bad date" {
		t.Errorf("unexpected payload %+v", decoded)
	}
	if decoded.Details["field"] != "date" {
		t.Errorf("details lost: %v", decoded.Details)
	}
}
