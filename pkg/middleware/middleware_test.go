package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"evcharge/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func okHandler(calls *int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
}

func TestContentTypeValidation(t *testing.T) {
	log := logger.Discard()

	tests := []struct {
		name        string
		method      string
		body        string
		contentType string
		wantStatus  int
	}{
		{"json post", http.MethodPost, `{"a":1}`, "application/json; charset=utf-8", http.StatusCreated},
		{"text post", http.MethodPost, `a=1`, "text/plain", http.StatusUnsupportedMediaType},
		{"body-less patch", http.MethodPatch, "", "", http.StatusCreated},
		{"get ignored", http.MethodGet, "", "", http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			h := ContentTypeValidation(log)(okHandler(&calls))

			var req *http.Request
			if tt.body != "" {
				req = httptest.NewRequest(tt.method, "/api/bookings", strings.NewReader(tt.body))
			} else {
				req = httptest.NewRequest(tt.method, "/api/bookings", nil)
			}
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()

			h.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestKeyRateLimiter_Window(t *testing.T) {
	limiter := NewKeyRateLimiter(2, time.Minute, nil, logger.Discard())
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.2"), "keys are independent")
	assert.True(t, limiter.Allow(""), "empty key bypasses the limiter")

	now = now.Add(61 * time.Second)
	assert.True(t, limiter.Allow("10.0.0.1"), "window slides")

	now = now.Add(5 * time.Minute)
	limiter.Cleanup()
	assert.Equal(t, 0, limiter.Size())
}

func TestRateLimit_Middleware(t *testing.T) {
	var calls int32
	limiter := NewKeyRateLimiter(1, time.Minute, nil, logger.Discard())
	h := RateLimit(limiter)(okHandler(&calls))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/stations", nil))
	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/stations", nil))

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, int32(1), calls)
}

func TestClientIPExtractor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.7:5123"
	assert.Equal(t, "192.168.1.7", ClientIPExtractor(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", ClientIPExtractor(req))
}

func TestIdempotency_ReplaysSuccessfulPost(t *testing.T) {
	var calls int32
	store := NewInMemoryIdempotencyStore(time.Hour)
	h := Idempotency(store, "")(okHandler(&calls))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/bookings", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "k-1")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	first := send()
	second := send()

	assert.Equal(t, int32(1), calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
}

func TestIdempotency_SkipsUnlistedPaths(t *testing.T) {
	var calls int32
	store := NewInMemoryIdempotencyStore(time.Hour)
	h := Idempotency(store, "", "/api/bookings")(okHandler(&calls))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/hardware/identify", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "k-1")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	assert.Equal(t, int32(2), calls)
}

func TestRecovery_ReturnsInternalError(t *testing.T) {
	h := Recovery(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()

	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
}

func TestRequestTimeout(t *testing.T) {
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	h := RequestTimeout(20*time.Millisecond, logger.Discard())(slow)
	w := httptest.NewRecorder()

	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
