package entry

import (
	"context"
	"encoding/json"
	"net/http"

	httputil "evcharge/pkg/http"
	"evcharge/pkg/logger"
	"evcharge/pkg/sanitizer"

	"github.com/go-playground/validator/v10"
	"github.com/julienschmidt/httprouter"
)

// Identifier is implemented by *Engine.
type Identifier interface {
	Identify(ctx context.Context, stationID int, plate string) (Decision, error)
}

type IdentifyRequest struct {
	StationID   int    `json:"stationId" validate:"required,min=1"`
	PlateNumber string `json:"plateNumber" validate:"required,plate"`
}

type Handler struct {
	engine   Identifier
	validate *validator.Validate
	log      *logger.Logger
}

func NewHandler(engine Identifier, log *logger.Logger) *Handler {
	v := validator.New()
	if err := v.RegisterValidation("plate", func(fl validator.FieldLevel) bool {
		return sanitizer.NormalizePlate(fl.Field().String()) != ""
	}); err != nil {
		log.Fatal("Failed to register 'plate' validator", "error", err)
	}

	return &Handler{
		engine:   engine,
		validate: v,
		log:      log,
	}
}

// Identify answers camera plate reads. The response is the bare decision
// object the camera firmware expects, not the {data} envelope.
func (h *Handler) Identify(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req IdentifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || h.validate.Struct(&req) != nil {
		h.write(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "Missing fields"})
		return
	}

	h.log.Info("Identify request",
		"station_id", req.StationID,
		"plate", req.PlateNumber,
	)

	decision, err := h.engine.Identify(r.Context(), req.StationID, req.PlateNumber)
	if err != nil {
		h.log.Error("Identify failed",
			"station_id", req.StationID,
			"plate", req.PlateNumber,
			"error", err,
		)
		h.write(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "Internal error"})
		return
	}

	h.write(w, http.StatusOK, decision)
}

func (h *Handler) write(w http.ResponseWriter, status int, body any) {
	if err := httputil.WriteJSON(w, status, body); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Identify", "operation", "WriteJSON", "error", err)
	}
}

// RegisterRoutes mounts identify under /api and at the bare path older
// camera scripts post to.
func (h *Handler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/hardware/identify", h.Identify)
	router.POST("/hardware/identify", h.Identify)
}
