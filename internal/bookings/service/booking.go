package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "evcharge/internal/bookings/errors"
	"evcharge/internal/bookings/repository"
	"evcharge/internal/bookings/validator"
	stationserrors "evcharge/internal/stations/errors"
	stationsrepo "evcharge/internal/stations/repository"
	"evcharge/pkg/config"
	apperrors "evcharge/pkg/errors"
	"evcharge/pkg/model"
	"evcharge/pkg/payments"
	"evcharge/pkg/sanitizer"
)

const lockTTL = 10 * time.Second

type BookingService interface {
	Create(ctx context.Context, req *model.BookingCreate) (*model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	List(ctx context.Context, status string) ([]*model.Booking, error)
	Cancel(ctx context.Context, id string) (*model.Booking, error)
	Reschedule(ctx context.Context, id string, req *model.BookingReschedule) (*model.Booking, error)
	CreatePaymentIntent(ctx context.Context, req *model.PaymentIntentCreate) (*model.PaymentIntent, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	lockRepo  repository.BookingLockRepository
	stations  stationsrepo.StationRepository
	payments  payments.Processor
	validator *validator.BookingValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewBookingService(
	repo repository.BookingRepository,
	lockRepo repository.BookingLockRepository,
	stations stationsrepo.StationRepository,
	processor payments.Processor,
	validator *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		lockRepo:  lockRepo,
		stations:  stations,
		payments:  processor,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *bookingService) Create(ctx context.Context, req *model.BookingCreate) (*model.Booking, error) {
	s.sanitize(req)
	if err := s.validator.Validate(req); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		return nil, apperrors.Validation("Invalid booking data", map[string]any{"error": err.Error()})
	}

	station, err := s.stations.FindByID(ctx, req.StationID)
	if err != nil {
		return nil, s.stationError(req.StationID, err)
	}

	if err := s.verifyPayment(ctx, req.PaymentID); err != nil {
		return nil, err
	}

	lockID, err := s.acquireSlotLock(ctx, req.StationID, req.Date, req.StartTime)
	if err != nil {
		return nil, err
	}
	defer s.releaseSlotLock(ctx, lockID)

	if err := s.verifyAvailability(ctx, req.StationID, req.Date, req.StartTime, req.CarNumber, ""); err != nil {
		return nil, err
	}

	booking := &model.Booking{
		StationID:   station.ID,
		StationName: station.Name,
		Location:    station.Location,
		Date:        req.Date,
		StartTime:   req.StartTime,
		Duration:    req.Duration,
		ChargerType: req.ChargerType,
		Status:      model.StatusUpcoming,
		TotalCost:   req.TotalCost,
		PaymentID:   req.PaymentID,
		PersonName:  req.PersonName,
		CarModel:    req.CarModel,
		CarNumber:   req.CarNumber,
	}
	if err := s.repo.Create(ctx, booking); err != nil {
		s.cfg.Log.Error("Failed to create booking", "error", err)
		return nil, apperrors.Internal("Failed to create booking", err)
	}

	s.cfg.Log.Info("Booking created",
		"id", booking.ID,
		"station_id", booking.StationID,
		"date", booking.Date,
		"start_time", booking.StartTime,
		"car_number", booking.CarNumber,
	)
	return booking, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.bookingError(id, err, "Failed to retrieve booking")
	}
	return booking, nil
}

func (s *bookingService) List(ctx context.Context, status string) ([]*model.Booking, error) {
	st := model.BookingStatus(status)
	if st != "" && !st.Valid() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid status filter: %s", status))
	}

	bookings, err := s.repo.FindAll(ctx, st)
	if err != nil {
		s.cfg.Log.Error("Failed to list bookings", "status", status, "error", err)
		return nil, apperrors.Internal("Failed to retrieve bookings", err)
	}
	return bookings, nil
}

// Cancel marks the booking cancelled and refunds its payment. A failed
// refund does not undo the cancellation.
func (s *bookingService) Cancel(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.UpdateStatus(ctx, id, model.StatusCancelled)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrInvalidTransition) {
			return nil, apperrors.Conflict("Booking can no longer be cancelled")
		}
		return nil, s.bookingError(id, err, "Failed to cancel booking")
	}

	if booking.PaymentID != "" {
		if err := s.payments.Refund(ctx, booking.PaymentID); err != nil {
			s.cfg.Log.Error("Refund failed for cancelled booking",
				"id", id,
				"payment_id", booking.PaymentID,
				"error", err,
			)
		}
	}

	s.cfg.Log.Info("Booking cancelled", "id", id)
	return booking, nil
}

func (s *bookingService) Reschedule(ctx context.Context, id string, req *model.BookingReschedule) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	req.StartTime = canonicalClock(req.StartTime)
	if err := s.validator.ValidateReschedule(req); err != nil {
		return nil, apperrors.InvalidInput("Missing or invalid date or start time")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.bookingError(id, err, "Failed to retrieve booking")
	}
	if existing.Status != model.StatusUpcoming {
		return nil, apperrors.Conflict("Only upcoming bookings can be rescheduled")
	}

	lockID, err := s.acquireSlotLock(ctx, existing.StationID, req.Date, req.StartTime)
	if err != nil {
		return nil, err
	}
	defer s.releaseSlotLock(ctx, lockID)

	if err := s.verifyAvailability(ctx, existing.StationID, req.Date, req.StartTime, existing.CarNumber, id); err != nil {
		return nil, err
	}

	booking, err := s.repo.Reschedule(ctx, id, req.Date, req.StartTime)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotReschedulable) {
			return nil, apperrors.Conflict("Only upcoming bookings can be rescheduled")
		}
		return nil, s.bookingError(id, err, "Failed to reschedule booking")
	}

	s.cfg.Log.Info("Booking rescheduled",
		"id", id,
		"date", booking.Date,
		"start_time", booking.StartTime,
	)
	return booking, nil
}

func (s *bookingService) CreatePaymentIntent(ctx context.Context, req *model.PaymentIntentCreate) (*model.PaymentIntent, error) {
	if err := s.validator.ValidatePaymentIntent(req); err != nil {
		return nil, apperrors.InvalidInput("Missing required fields")
	}

	if _, err := s.stations.FindByID(ctx, req.StationID); err != nil {
		return nil, s.stationError(req.StationID, err)
	}

	intent, err := s.payments.CreateIntent(ctx, req.TotalCost, req.StationID)
	if err != nil {
		if errors.Is(err, payments.ErrNotConfigured) {
			return nil, apperrors.Unavailable("Payment provider")
		}
		s.cfg.Log.Error("Failed to create payment intent", "station_id", req.StationID, "error", err)
		return nil, apperrors.Upstream("Stripe", err)
	}

	return &model.PaymentIntent{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
	}, nil
}

// --- Helpers ---

func (s *bookingService) sanitize(req *model.BookingCreate) {
	req.CarNumber = sanitizer.NormalizePlate(req.CarNumber)
	req.PersonName = sanitizer.NormalizeName(req.PersonName)
	req.CarModel = sanitizer.TrimAndNormalize(req.CarModel)
	req.ChargerType = sanitizer.NormalizeChargerType(req.ChargerType)
	req.StartTime = canonicalClock(req.StartTime)
}

// canonicalClock rewrites "9:00" as "09:00" so start times compare as
// strings. Unparseable input is left for the validator to reject.
func canonicalClock(clock string) string {
	t, err := time.Parse(model.ClockLayout, clock)
	if err != nil {
		return clock
	}
	return t.Format(model.ClockLayout)
}

func (s *bookingService) verifyPayment(ctx context.Context, paymentID string) error {
	ok, err := s.payments.Succeeded(ctx, paymentID)
	if err != nil {
		if errors.Is(err, payments.ErrNotConfigured) {
			return apperrors.Unavailable("Payment provider")
		}
		s.cfg.Log.Error("Failed to verify payment", "payment_id", paymentID, "error", err)
		return apperrors.Upstream("Stripe", err)
	}
	if !ok {
		return apperrors.PaymentNotCompleted(paymentID)
	}
	return nil
}

// verifyAvailability enforces one live booking per station, date and start
// time. skipID excludes the booking being moved.
func (s *bookingService) verifyAvailability(ctx context.Context, stationID int, date, startTime, carNumber, skipID string) error {
	existing, err := s.repo.FindByStationAndDate(ctx, stationID, date)
	if err != nil {
		return apperrors.Internal("Failed to check existing bookings", err)
	}

	for _, b := range existing {
		if b.ID == skipID || b.Status == model.StatusCancelled || b.StartTime != startTime {
			continue
		}
		if b.CarNumber == carNumber {
			return apperrors.Conflict("This car is already booked for this slot")
		}
		return apperrors.Conflict("Time slot no longer available")
	}
	return nil
}

func lockKey(stationID int, date, startTime string) string {
	return fmt.Sprintf("booking_lock_%d_%s_%s", stationID, date, startTime)
}

func (s *bookingService) acquireSlotLock(ctx context.Context, stationID int, date, startTime string) (string, error) {
	lockID := lockKey(stationID, date, startTime)
	lock := &model.BookingLock{
		ID:        lockID,
		ExpiresAt: s.now().Add(lockTTL),
	}

	if _, err := s.lockRepo.Create(ctx, lock); err != nil {
		if errors.Is(err, bookingserrors.ErrLockHeld) {
			return "", apperrors.Conflict("This time slot is currently being booked by another request. Please try again.")
		}
		return "", apperrors.Internal("Failed to acquire booking lock", err)
	}
	return lockID, nil
}

func (s *bookingService) releaseSlotLock(ctx context.Context, lockID string) {
	if err := s.lockRepo.Delete(context.WithoutCancel(ctx), lockID); err != nil {
		s.cfg.Log.Warn("Failed to release booking lock", "lock_id", lockID, "error", err)
	}
}

func (s *bookingService) bookingError(id string, err error, message string) error {
	if errors.Is(err, bookingserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Booking", id)
	}
	s.cfg.Log.Error(message, "id", id, "error", err)
	return apperrors.Internal(message, err)
}

func (s *bookingService) stationError(stationID int, err error) error {
	if errors.Is(err, stationserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Station", fmt.Sprint(stationID))
	}
	return apperrors.Internal("Failed to retrieve station", err)
}
