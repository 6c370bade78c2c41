package entry

import (
	"context"
	"fmt"

	"evcharge/pkg/kafka"
	"evcharge/pkg/logger"
	"evcharge/pkg/sanitizer"
)

// PlateDetection is a camera read delivered over Kafka instead of HTTP.
type PlateDetection struct {
	StationID   int    `json:"stationId"`
	PlateNumber string `json:"plateNumber"`
}

// PlateDetectionHandler feeds plate detections into the engine. Malformed
// payloads are permanent failures; store faults are retried.
func PlateDetectionHandler(engine Identifier, log *logger.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var det PlateDetection
		if err := msg.DecodeValue(&det); err != nil {
			return kafka.NewPermanentError("deserialization failed", err)
		}
		if det.StationID <= 0 || sanitizer.NormalizePlate(det.PlateNumber) == "" {
			return kafka.NewPermanentError(fmt.Sprintf("plate detection at offset %d lacks stationId or plateNumber", msg.Offset), nil)
		}

		decision, err := engine.Identify(ctx, det.StationID, det.PlateNumber)
		if err != nil {
			return kafka.NewTransientError("identify plate detection", err)
		}

		log.Debug("Plate detection handled",
			"station_id", det.StationID,
			"authorized", decision.Authorized,
			"reason", decision.Reason,
		)
		return nil
	}
}
