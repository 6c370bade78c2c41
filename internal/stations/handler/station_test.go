package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	bookingsrepo "evcharge/internal/bookings/repository"
	"evcharge/internal/slots"
	"evcharge/internal/stations/repository"
	"evcharge/internal/stations/service"
	"evcharge/pkg/logger"
	"evcharge/pkg/model"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func newRouter() *httprouter.Router {
	log := logger.Discard()
	svc := service.NewStationService(
		repository.NewMemoryStationRepository(model.DefaultStations()),
		bookingsrepo.NewMemoryBookingRepository(),
		slots.NewMemoryRegistry(3),
		time.UTC,
		log,
	)
	router := httprouter.New()
	NewStationHandler(svc, log).RegisterRoutes(router)
	return router
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestStationHandler(t *testing.T) {
	router := newRouter()

	tests := []struct {
		name       string
		path       string
		wantStatus int
		check      func(t *testing.T, body string)
	}{
		{"list", "/api/stations", http.StatusOK, func(t *testing.T, body string) {
			assert.Equal(t, int64(3), gjson.Get(body, "data.#").Int())
			assert.Equal(t, int64(1), gjson.Get(body, "data.0.id").Int())
		}},
		{"get", "/api/stations/3", http.StatusOK, func(t *testing.T, body string) {
			assert.Equal(t, "Whitefield Tech Charge", gjson.Get(body, "data.name").String())
		}},
		{"get unknown", "/api/stations/9", http.StatusNotFound, nil},
		{"get non numeric", "/api/stations/abc", http.StatusBadRequest, nil},
		{"availability", "/api/stations/1/availability?date=2099-01-01", http.StatusOK, func(t *testing.T, body string) {
			assert.True(t, gjson.Get(body, "data.bookedSlots").IsArray())
			assert.Equal(t, int64(0), gjson.Get(body, "data.bookedSlots.#").Int())
		}},
		{"availability without date", "/api/stations/1/availability", http.StatusBadRequest, nil},
		{"slots", "/api/stations/1/slots", http.StatusOK, func(t *testing.T, body string) {
			assert.Equal(t, int64(3), gjson.Get(body, "data.#").Int())
		}},
		{"summary", "/api/availability/summary?date=2099-01-01", http.StatusOK, func(t *testing.T, body string) {
			assert.Equal(t, "High Availability", gjson.Get(body, "data.0.status").String())
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(router, tt.path)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.check != nil {
				tt.check(t, w.Body.String())
			}
		})
	}
}
