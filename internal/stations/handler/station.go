package handler

import (
	"net/http"
	"strconv"

	"evcharge/internal/stations/service"
	apperrors "evcharge/pkg/errors"
	httputil "evcharge/pkg/http"
	"evcharge/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type StationHandler struct {
	service service.StationService
	log     *logger.Logger
}

func NewStationHandler(service service.StationService, log *logger.Logger) *StationHandler {
	return &StationHandler{
		service: service,
		log:     log,
	}
}

func (h *StationHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	stations, err := h.service.List(r.Context())
	h.respond(w, stations, err, "List")
}

func (h *StationHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := h.stationID(w, ps, "GetByID")
	if !ok {
		return
	}
	station, err := h.service.GetByID(r.Context(), id)
	h.respond(w, station, err, "GetByID")
}

func (h *StationHandler) Availability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := h.stationID(w, ps, "Availability")
	if !ok {
		return
	}
	availability, err := h.service.Availability(r.Context(), id, r.URL.Query().Get("date"))
	h.respond(w, availability, err, "Availability")
}

func (h *StationHandler) LiveSlots(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := h.stationID(w, ps, "LiveSlots")
	if !ok {
		return
	}
	states, err := h.service.LiveSlots(r.Context(), id)
	h.respond(w, states, err, "LiveSlots")
}

func (h *StationHandler) Summary(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	summary, err := h.service.Summary(r.Context(), r.URL.Query().Get("date"))
	h.respond(w, summary, err, "Summary")
}

func (h *StationHandler) stationID(w http.ResponseWriter, ps httprouter.Params, handler string) (int, bool) {
	id, err := strconv.Atoi(ps.ByName("id"))
	if err != nil || id <= 0 {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("Invalid station id")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
		}
		return 0, false
	}
	return id, true
}

func (h *StationHandler) respond(w http.ResponseWriter, data any, err error, handler string) {
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
		}
		return
	}
	if writeErr := httputil.WriteSuccess(w, data); writeErr != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", writeErr)
	}
}

// The summary lives outside /api/stations because httprouter cannot mix a
// static segment with the :id wildcard.
func (h *StationHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/stations", h.List)
	router.GET("/api/stations/:id", h.GetByID)
	router.GET("/api/stations/:id/availability", h.Availability)
	router.GET("/api/stations/:id/slots", h.LiveSlots)
	router.GET("/api/availability/summary", h.Summary)
}
