package handler

import (
	"encoding/json"
	"net/http"

	"evcharge/internal/bookings/service"
	httputil "evcharge/pkg/http"
	"evcharge/pkg/logger"
	"evcharge/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.BookingCreate
	if !h.decode(w, r, &req, "Create") {
		return
	}

	booking, err := h.service.Create(r.Context(), &req)
	if err != nil {
		h.writeError(w, err, "Create")
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, err, "GetByID")
		return
	}
	h.writeSuccess(w, booking, "GetByID")
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	bookings, err := h.service.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.writeError(w, err, "List")
		return
	}
	h.writeSuccess(w, bookings, "List")
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.Cancel(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, err, "Cancel")
		return
	}
	h.writeSuccess(w, booking, "Cancel")
}

func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.BookingReschedule
	if !h.decode(w, r, &req, "Reschedule") {
		return
	}

	booking, err := h.service.Reschedule(r.Context(), ps.ByName("id"), &req)
	if err != nil {
		h.writeError(w, err, "Reschedule")
		return
	}
	h.writeSuccess(w, booking, "Reschedule")
}

func (h *BookingHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.PaymentIntentCreate
	if !h.decode(w, r, &req, "CreatePaymentIntent") {
		return
	}

	intent, err := h.service.CreatePaymentIntent(r.Context(), &req)
	if err != nil {
		h.writeError(w, err, "CreatePaymentIntent")
		return
	}
	h.writeSuccess(w, intent, "CreatePaymentIntent")
}

func (h *BookingHandler) decode(w http.ResponseWriter, r *http.Request, dst any, handler string) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", handler, "operation", "WriteJSON", "error", writeErr)
		}
		return false
	}
	return true
}

func (h *BookingHandler) writeError(w http.ResponseWriter, err error, handler string) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) writeSuccess(w http.ResponseWriter, data any, handler string) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/bookings", h.List)
	router.POST("/api/bookings", h.Create)
	router.GET("/api/bookings/:id", h.GetByID)
	router.PATCH("/api/bookings/:id/cancel", h.Cancel)
	router.PATCH("/api/bookings/:id/reschedule", h.Reschedule)
	router.POST("/api/payment-intent", h.CreatePaymentIntent)
}
