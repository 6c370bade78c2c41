package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	bookingserrors "evcharge/internal/bookings/errors"
	"evcharge/pkg/model"

	"github.com/google/uuid"
)

type memoryBookingRepository struct {
	mu       sync.RWMutex
	bookings []*model.Booking
	byID     map[string]*model.Booking
	now      func() time.Time
}

// NewMemoryBookingRepository keeps bookings in process memory in insertion
// order. Callers always receive copies.
func NewMemoryBookingRepository() BookingRepository {
	return &memoryBookingRepository{
		byID: make(map[string]*model.Booking),
		now:  time.Now,
	}
}

func (r *memoryBookingRepository) Create(_ context.Context, booking *model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	booking.CreatedAt = r.now().UTC().Truncate(time.Millisecond)

	stored := *booking
	r.bookings = append(r.bookings, &stored)
	r.byID[stored.ID] = &stored
	return nil
}

func (r *memoryBookingRepository) FindByID(_ context.Context, id string) (*model.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.byID[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	return clone(b), nil
}

func (r *memoryBookingRepository) FindAll(_ context.Context, status model.BookingStatus) ([]*model.Booking, error) {
	out := r.filter(func(b *model.Booking) bool {
		return status == "" || b.Status == status
	})
	slices.Reverse(out)
	return out, nil
}

func (r *memoryBookingRepository) FindByPlate(_ context.Context, plate string) ([]*model.Booking, error) {
	return r.filter(func(b *model.Booking) bool {
		return b.CarNumber == plate
	}), nil
}

func (r *memoryBookingRepository) FindByStationAndDate(_ context.Context, stationID int, date string) ([]*model.Booking, error) {
	out := r.filter(func(b *model.Booking) bool {
		return b.StationID == stationID && b.Date == date
	})
	slices.SortStableFunc(out, func(a, b *model.Booking) int {
		switch {
		case a.StartTime < b.StartTime:
			return -1
		case a.StartTime > b.StartTime:
			return 1
		}
		return 0
	})
	return out, nil
}

func (r *memoryBookingRepository) filter(keep func(*model.Booking) bool) []*model.Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*model.Booking{}
	for _, b := range r.bookings {
		if keep(b) {
			out = append(out, clone(b))
		}
	}
	return out
}

func (r *memoryBookingRepository) UpdateStatus(_ context.Context, id string, status model.BookingStatus) (*model.Booking, error) {
	return r.mutate(id, func(b *model.Booking) error {
		if !b.Status.CanTransitionTo(status) {
			return bookingserrors.ErrInvalidTransition
		}
		b.Status = status
		return nil
	})
}

func (r *memoryBookingRepository) AssignSlot(_ context.Context, id string, slotID int) (*model.Booking, error) {
	return r.mutate(id, func(b *model.Booking) error {
		b.SlotID = &slotID
		return nil
	})
}

func (r *memoryBookingRepository) Reschedule(_ context.Context, id, date, startTime string) (*model.Booking, error) {
	return r.mutate(id, func(b *model.Booking) error {
		if b.Status != model.StatusUpcoming {
			return bookingserrors.ErrNotReschedulable
		}
		b.Date = date
		b.StartTime = startTime
		return nil
	})
}

func (r *memoryBookingRepository) mutate(id string, apply func(*model.Booking) error) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.byID[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	if err := apply(b); err != nil {
		return nil, err
	}
	return clone(b), nil
}

func clone(b *model.Booking) *model.Booking {
	c := *b
	if b.SlotID != nil {
		slot := *b.SlotID
		c.SlotID = &slot
	}
	return &c
}
