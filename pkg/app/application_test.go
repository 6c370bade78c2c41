package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"evcharge/pkg/config"
	httputil "evcharge/pkg/http"
	"evcharge/pkg/logger"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

type echoHandler struct{}

func (echoHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/echo", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		_ = httputil.WriteSuccess(w, "echo")
	})
}

type countingHandler struct {
	calls map[string]int
}

func (c *countingHandler) RegisterRoutes(router *httprouter.Router) {
	for _, path := range []string{"/api/bookings", "/api/hardware/identify"} {
		router.POST(path, func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
			c.calls[r.URL.Path]++
			_ = httputil.WriteSuccess(w, c.calls[r.URL.Path])
		})
	}
}

type relayStub struct{}

func (relayStub) RegisterRoutes(router *httprouter.Router) {
	router.GET("/ws", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusSwitchingProtocols)
	})
}

func testConfig() *config.Config {
	return &config.Config{
		Port:              "0",
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    time.Second,
		IdempotencyTTL:    time.Minute,
		MaxRequestSize:    1 << 20,
		CleanupInterval:   time.Minute,
		ShutdownTimeout:   time.Second,
		Log:               logger.Discard(),
	}
}

func TestApplication_Routes(t *testing.T) {
	a := NewApplication(testConfig())
	a.Health().AddCheck("mongo", func(context.Context) error { return nil })
	a.SetApp(relayStub{}, echoHandler{})
	h := a.Handler()

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/health", http.StatusOK, `{"status":"ok"}`},
		{"/api/ping", http.StatusOK, `{"ok":true}`},
		{"/ready", http.StatusOK, `{"status":"ready","checks":{"mongo":"ok"}}`},
		{"/api/echo", http.StatusOK, `{"data":"echo"}`},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusSwitchingProtocols, w.Code, "relay bypasses the API middleware")

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthHandler_ReadyReportsFailingCheck(t *testing.T) {
	hh := NewHealthHandler(logger.Discard())
	hh.AddCheck("mongo", func(context.Context) error { return nil })
	hh.AddCheck("redis", func(context.Context) error { return errors.New("connection refused") })
	router := httprouter.New()
	hh.RegisterRoutes(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := w.Body.String()
	assert.Equal(t, "unavailable", gjson.Get(body, "status").String())
	assert.Equal(t, "ok", gjson.Get(body, "checks.mongo").String())
	assert.Equal(t, "error", gjson.Get(body, "checks.redis").String())
}

func TestApplication_WorkersAndHooks(t *testing.T) {
	cfg := testConfig()
	a := NewApplication(cfg)
	a.SetApp(nil, echoHandler{})

	stopped := make(chan struct{})
	a.AddWorker("consumer", func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	})
	var order []string
	a.OnShutdown("first", func() error { order = append(order, "first"); return nil })
	a.OnShutdown("second", func() error { order = append(order, "second"); return errors.New("ignored") })

	a.startWorkers()
	a.stopWorkers()
	a.workersWG.Wait()

	select {
	case <-stopped:
	default:
		t.Fatal("worker did not observe cancellation")
	}

	for i := len(a.hooks) - 1; i >= 0; i-- {
		_ = a.hooks[i].fn()
	}
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestApplication_IdempotencyOnlyReplaysBookings(t *testing.T) {
	counter := &countingHandler{calls: map[string]int{}}
	a := NewApplication(testConfig())
	a.SetApp(relayStub{}, counter)
	h := a.Handler()

	post := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"stationId":1}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "same-key")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	post("/api/bookings")
	replay := post("/api/bookings")
	post("/api/hardware/identify")
	repeat := post("/api/hardware/identify")

	assert.Equal(t, 1, counter.calls["/api/bookings"])
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 2, counter.calls["/api/hardware/identify"], "gate commands must run on every identify")
	assert.Empty(t, repeat.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, int64(2), gjson.Get(repeat.Body.String(), "data").Int())
}
