package entry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	bookingerrors "evcharge/internal/bookings/errors"
	"evcharge/internal/relay"
	"evcharge/pkg/logger"
	"evcharge/pkg/model"
	"evcharge/pkg/sanitizer"
)

const (
	DefaultEarlyWindow = 30 * time.Minute
	defaultGuestName   = "User"
)

type Reason string

const (
	ReasonNoBooking     Reason = "no_booking"
	ReasonAlreadyActive Reason = "already_active"
	ReasonStationFull   Reason = "station_full"
)

// Decision is the outcome of one plate read at a station gate.
type Decision struct {
	Authorized bool   `json:"authorized"`
	BookingID  string `json:"bookingId,omitempty"`
	SlotID     int    `json:"slotId,omitempty"`
	Reason     Reason `json:"reason,omitempty"`
}

// BookingStore is the part of the booking repository the engine needs.
type BookingStore interface {
	FindByPlate(ctx context.Context, plate string) ([]*model.Booking, error)
	UpdateStatus(ctx context.Context, id string, status model.BookingStatus) (*model.Booking, error)
	AssignSlot(ctx context.Context, id string, slotID int) (*model.Booking, error)
}

type SlotAllocator interface {
	Reserve(ctx context.Context, stationID int) (int, bool, error)
	Release(ctx context.Context, stationID, slotID int) error
}

type GateCommander interface {
	SendToGate(stationID int, cmd relay.Command) int
}

type Options struct {
	Location    *time.Location
	EarlyWindow time.Duration
}

type Engine struct {
	store       BookingStore
	slots       SlotAllocator
	gates       GateCommander
	events      EventPublisher
	loc         *time.Location
	earlyWindow time.Duration
	now         func() time.Time
	log         *logger.Logger
}

func NewEngine(store BookingStore, slots SlotAllocator, gates GateCommander, events EventPublisher, opts Options, log *logger.Logger) *Engine {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.EarlyWindow <= 0 {
		opts.EarlyWindow = DefaultEarlyWindow
	}
	if events == nil {
		events = NoopPublisher{}
	}
	return &Engine{
		store:       store,
		slots:       slots,
		gates:       gates,
		events:      events,
		loc:         opts.Location,
		earlyWindow: opts.EarlyWindow,
		now:         time.Now,
		log:         log,
	}
}

type candidate struct {
	booking *model.Booking
	start   time.Time
	end     time.Time
}

// Identify decides whether the car with plate may enter stationID and drives
// the station's gate accordingly. Denials are results, not errors; an error
// means the booking store or slot registry failed.
func (e *Engine) Identify(ctx context.Context, stationID int, plate string) (Decision, error) {
	plate = strings.TrimSpace(plate)
	e.gates.SendToGate(stationID, relay.Scanning{PlateNumber: plate})

	normalized := sanitizer.NormalizePlate(plate)
	bookings, err := e.store.FindByPlate(ctx, normalized)
	if err != nil {
		return Decision{}, fmt.Errorf("find bookings for plate %s: %w", normalized, err)
	}

	now := e.now().In(e.loc)
	match, err := e.selectBooking(ctx, stationID, normalized, bookings, now)
	if err != nil {
		return Decision{}, err
	}

	if match == nil {
		return e.deny(ctx, stationID, normalized, "", ReasonNoBooking), nil
	}

	if match.Status == model.StatusActive {
		return e.deny(ctx, stationID, normalized, match.ID, ReasonAlreadyActive), nil
	}

	return e.admit(ctx, stationID, normalized, match)
}

// selectBooking returns the first booking, by scheduled start, whose entry
// window contains now. Active bookings past their end are completed on the way.
func (e *Engine) selectBooking(ctx context.Context, stationID int, plate string, bookings []*model.Booking, now time.Time) (*model.Booking, error) {
	candidates := make([]candidate, 0, len(bookings))
	for _, b := range bookings {
		if b.StationID != stationID || b.Status.IsTerminal() {
			continue
		}
		start, end, err := b.Window(e.loc)
		if err != nil {
			e.log.Warn("Skipping booking with unreadable schedule",
				"booking_id", b.ID,
				"error", err,
			)
			continue
		}
		candidates = append(candidates, candidate{booking: b, start: start, end: end})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].start.Before(candidates[j].start)
	})

	for _, c := range candidates {
		if now.After(c.end) {
			if c.booking.Status == model.StatusActive {
				if err := e.expire(ctx, stationID, plate, c.booking); err != nil {
					return nil, err
				}
			}
			continue
		}

		if !now.Before(c.start.Add(-e.earlyWindow)) {
			return c.booking, nil
		}

		e.log.Debug("Booking outside entry window",
			"booking_id", c.booking.ID,
			"window_start", c.start.Add(-e.earlyWindow),
			"window_end", c.end,
		)
	}

	return nil, nil
}

func (e *Engine) expire(ctx context.Context, stationID int, plate string, b *model.Booking) error {
	_, err := e.store.UpdateStatus(ctx, b.ID, model.StatusCompleted)
	switch {
	case err == nil:
		e.log.Info("Completed expired active booking", "booking_id", b.ID, "station_id", stationID)
		e.publish(ctx, Event{
			Type:      EventBookingExpired,
			StationID: stationID,
			Plate:     plate,
			BookingID: b.ID,
		})
		return nil
	case errors.Is(err, bookingerrors.ErrInvalidTransition), errors.Is(err, bookingerrors.ErrNotFound):
		// Completed or removed concurrently.
		return nil
	default:
		return fmt.Errorf("complete expired booking %s: %w", b.ID, err)
	}
}

func (e *Engine) admit(ctx context.Context, stationID int, plate string, b *model.Booking) (Decision, error) {
	slotID, ok, err := e.slots.Reserve(ctx, stationID)
	if err != nil {
		return Decision{}, fmt.Errorf("reserve slot at station %d: %w", stationID, err)
	}
	if !ok {
		return e.deny(ctx, stationID, plate, b.ID, ReasonStationFull), nil
	}

	if _, err := e.store.AssignSlot(ctx, b.ID, slotID); err != nil {
		e.release(ctx, stationID, slotID)
		return Decision{}, fmt.Errorf("assign slot %d to booking %s: %w", slotID, b.ID, err)
	}

	if _, err := e.store.UpdateStatus(ctx, b.ID, model.StatusActive); err != nil {
		if errors.Is(err, bookingerrors.ErrInvalidTransition) {
			// Another read of the same plate activated it first.
			e.release(ctx, stationID, slotID)
			return e.deny(ctx, stationID, plate, b.ID, ReasonAlreadyActive), nil
		}
		// The booking keeps its slot id but stays upcoming. A retry reserves afresh.
		e.release(ctx, stationID, slotID)
		e.log.Error("Booking was assigned a slot but not activated",
			"booking_id", b.ID,
			"station_id", stationID,
			"slot_id", slotID,
			"error", err,
		)
		return Decision{}, fmt.Errorf("activate booking %s: %w", b.ID, err)
	}

	name := strings.TrimSpace(b.PersonName)
	if name == "" {
		name = defaultGuestName
	}
	e.gates.SendToGate(stationID, relay.GateOpen{Name: name, SlotID: slotID})

	decision := Decision{Authorized: true, BookingID: b.ID, SlotID: slotID}
	e.log.Info("Entry authorized",
		"station_id", stationID,
		"booking_id", b.ID,
		"slot_id", slotID,
	)
	e.publishDecision(ctx, stationID, plate, decision)
	return decision, nil
}

func (e *Engine) deny(ctx context.Context, stationID int, plate, bookingID string, reason Reason) Decision {
	e.gates.SendToGate(stationID, relay.GateDenied{})

	decision := Decision{Authorized: false, BookingID: bookingID, Reason: reason}
	e.log.Info("Entry denied",
		"station_id", stationID,
		"plate", plate,
		"booking_id", bookingID,
		"reason", reason,
	)
	e.publishDecision(ctx, stationID, plate, decision)

	// Only the reason travels back to the camera.
	decision.BookingID = ""
	return decision
}

func (e *Engine) release(ctx context.Context, stationID, slotID int) {
	if err := e.slots.Release(context.WithoutCancel(ctx), stationID, slotID); err != nil {
		e.log.Error("Failed to release reserved slot",
			"station_id", stationID,
			"slot_id", slotID,
			"error", err,
		)
	}
}

func (e *Engine) publishDecision(ctx context.Context, stationID int, plate string, d Decision) {
	e.publish(ctx, Event{
		Type:       EventEntryDecided,
		StationID:  stationID,
		Plate:      plate,
		BookingID:  d.BookingID,
		SlotID:     d.SlotID,
		Authorized: d.Authorized,
		Reason:     d.Reason,
	})
}

func (e *Engine) publish(ctx context.Context, ev Event) {
	ev.At = e.now().UTC()
	if err := e.events.PublishEntryEvent(ctx, ev); err != nil {
		e.log.Warn("Failed to publish entry event",
			"event_type", ev.Type,
			"station_id", ev.StationID,
			"booking_id", ev.BookingID,
			"error", err,
		)
	}
}
