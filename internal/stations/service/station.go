package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	bookingsrepo "evcharge/internal/bookings/repository"
	"evcharge/internal/slots"
	stationserrors "evcharge/internal/stations/errors"
	"evcharge/internal/stations/repository"
	apperrors "evcharge/pkg/errors"
	"evcharge/pkg/logger"
	"evcharge/pkg/model"
)

// DailySlots is the number of bookable start times per station and day.
const DailySlots = 12

type StationService interface {
	List(ctx context.Context) ([]*model.Station, error)
	GetByID(ctx context.Context, id int) (*model.Station, error)
	Availability(ctx context.Context, id int, date string) (*model.StationAvailability, error)
	Summary(ctx context.Context, date string) ([]*model.StationSummary, error)
	LiveSlots(ctx context.Context, id int) ([]model.SlotState, error)
}

type stationService struct {
	repo     repository.StationRepository
	bookings bookingsrepo.BookingRepository
	slots    slots.Registry
	loc      *time.Location
	now      func() time.Time
	log      *logger.Logger
}

func NewStationService(
	repo repository.StationRepository,
	bookings bookingsrepo.BookingRepository,
	registry slots.Registry,
	loc *time.Location,
	log *logger.Logger,
) StationService {
	if loc == nil {
		loc = time.UTC
	}
	return &stationService{
		repo:     repo,
		bookings: bookings,
		slots:    registry,
		loc:      loc,
		now:      time.Now,
		log:      log,
	}
}

func (s *stationService) List(ctx context.Context) ([]*model.Station, error) {
	stations, err := s.repo.FindAll(ctx)
	if err != nil {
		s.log.Error("Failed to list stations", "error", err)
		return nil, apperrors.Internal("Failed to fetch stations", err)
	}
	return stations, nil
}

func (s *stationService) GetByID(ctx context.Context, id int) (*model.Station, error) {
	station, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, stationserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Station", fmt.Sprint(id))
		}
		s.log.Error("Failed to fetch station", "station_id", id, "error", err)
		return nil, apperrors.Internal("Failed to fetch station", err)
	}
	return station, nil
}

// Availability lists the start times that can no longer be booked on date:
// live bookings plus, for today, every hour that has already begun.
func (s *stationService) Availability(ctx context.Context, id int, date string) (*model.StationAvailability, error) {
	if date == "" {
		return nil, apperrors.InvalidInput("Invalid parameters")
	}
	if _, err := time.ParseInLocation(model.DateLayout, date, s.loc); err != nil {
		return nil, apperrors.InvalidInput(stationserrors.ErrInvalidDate.Error())
	}

	bookings, err := s.bookings.FindByStationAndDate(ctx, id, date)
	if err != nil {
		s.log.Error("Failed to load station bookings", "station_id", id, "date", date, "error", err)
		return nil, apperrors.Internal("Failed to check availability", err)
	}

	booked := []string{}
	for _, b := range bookings {
		if b.Status == model.StatusCancelled || slices.Contains(booked, b.StartTime) {
			continue
		}
		booked = append(booked, b.StartTime)
	}

	now := s.now().In(s.loc)
	if date == now.Format(model.DateLayout) {
		for hour := 0; hour < now.Hour(); hour++ {
			slot := fmt.Sprintf("%02d:00", hour)
			if !slices.Contains(booked, slot) {
				booked = append(booked, slot)
			}
		}
	}

	return &model.StationAvailability{
		StationID:   id,
		Date:        date,
		BookedSlots: booked,
	}, nil
}

func (s *stationService) Summary(ctx context.Context, date string) ([]*model.StationSummary, error) {
	if date == "" {
		date = s.now().In(s.loc).Format(model.DateLayout)
	} else if _, err := time.ParseInLocation(model.DateLayout, date, s.loc); err != nil {
		return nil, apperrors.InvalidInput(stationserrors.ErrInvalidDate.Error())
	}

	stations, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	summary := make([]*model.StationSummary, 0, len(stations))
	for _, station := range stations {
		bookings, err := s.bookings.FindByStationAndDate(ctx, station.ID, date)
		if err != nil {
			s.log.Error("Failed to load station bookings", "station_id", station.ID, "date", date, "error", err)
			return nil, apperrors.Internal("Failed to fetch summary", err)
		}

		booked := 0
		for _, b := range bookings {
			if b.Status != model.StatusCancelled {
				booked++
			}
		}

		summary = append(summary, &model.StationSummary{
			ID:          station.ID,
			Name:        station.Name,
			Location:    station.Location,
			TotalSlots:  DailySlots,
			BookedSlots: booked,
			Status:      availabilityLevel(booked, DailySlots),
		})
	}
	return summary, nil
}

func availabilityLevel(booked, total int) model.AvailabilityLevel {
	occupancy := float64(booked) / float64(total)
	switch {
	case occupancy > 0.8:
		return model.AvailabilityLow
	case occupancy > 0.4:
		return model.AvailabilityMedium
	default:
		return model.AvailabilityHigh
	}
}

// LiveSlots reports the physical bay occupancy currently known for the
// station.
func (s *stationService) LiveSlots(ctx context.Context, id int) ([]model.SlotState, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}

	snapshot, err := s.slots.Snapshot(ctx, id)
	if err != nil {
		s.log.Error("Failed to read slot occupancy", "station_id", id, "error", err)
		return nil, apperrors.Internal("Failed to read slot occupancy", err)
	}

	states := make([]model.SlotState, 0, s.slots.Capacity())
	for slot := 1; slot <= s.slots.Capacity(); slot++ {
		states = append(states, model.SlotState{
			SlotID:     slot,
			IsOccupied: snapshot[slot],
		})
	}
	return states, nil
}
