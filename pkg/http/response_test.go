package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "evcharge/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
		wantCode   string
	}{
		{
			name:       "conflict keeps message",
			err:        apperrors.Conflict("Slot already booked"),
			wantStatus: http.StatusConflict,
			wantError:  "Slot already booked",
			wantCode:   apperrors.CodeConflict,
		},
		{
			name:       "internal hides cause",
			err:        apperrors.Internal("Failed to query bookings", errors.New("mongo: connection reset")),
			wantStatus: http.StatusInternalServerError,
			wantError:  "Internal server error",
			wantCode:   apperrors.CodeInternal,
		},
		{
			name:       "plain error becomes internal",
			err:        errors.New("raw"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "Internal server error",
			wantCode:   apperrors.CodeInternal,
		},
		{
			name:       "upstream keeps generic message",
			err:        apperrors.Upstream("Stripe", errors.New("tls")),
			wantStatus: http.StatusBadGateway,
			wantError:  "Stripe request failed",
			wantCode:   apperrors.CodeUpstream,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, WriteError(w, tt.err))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantError, gjson.Get(w.Body.String(), "error").String())
			assert.Equal(t, tt.wantCode, gjson.Get(w.Body.String(), "code").String())
		})
	}
}

func TestWriteSuccess_WrapsData(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteSuccess(w, map[string]int{"count": 3}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(3), gjson.Get(w.Body.String(), "data.count").Int())
}
