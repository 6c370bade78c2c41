package entry

import (
	"context"
	"strconv"
	"time"

	"evcharge/pkg/kafka"
)

type EventType string

const (
	EventEntryDecided   EventType = "entry.decided"
	EventBookingExpired EventType = "booking.expired"

	eventSource        = "evcharge-gateway"
	eventSchemaVersion = "1"
)

type Event struct {
	Type       EventType `json:"type"`
	StationID  int       `json:"stationId"`
	Plate      string    `json:"plateNumber"`
	BookingID  string    `json:"bookingId,omitempty"`
	SlotID     int       `json:"slotId,omitempty"`
	Authorized bool      `json:"authorized"`
	Reason     Reason    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}

type EventPublisher interface {
	PublishEntryEvent(ctx context.Context, ev Event) error
}

type NoopPublisher struct{}

func (NoopPublisher) PublishEntryEvent(context.Context, Event) error { return nil }

// MessagePublisher is satisfied by *kafka.Producer.
type MessagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// KafkaPublisher writes entry events keyed by station so each station's
// events stay ordered within a partition.
type KafkaPublisher struct {
	producer MessagePublisher
}

func NewKafkaPublisher(producer MessagePublisher) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) PublishEntryEvent(ctx context.Context, ev Event) error {
	msg, err := kafka.NewMessage().
		WithKey(strconv.Itoa(ev.StationID)).
		WithValue(ev).
		WithEventType(string(ev.Type)).
		WithSource(eventSource).
		WithSchemaVersion(eventSchemaVersion).
		Build()
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}
