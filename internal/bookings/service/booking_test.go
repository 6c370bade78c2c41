package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"evcharge/internal/bookings/repository"
	"evcharge/internal/bookings/validator"
	stationsrepo "evcharge/internal/stations/repository"
	"evcharge/pkg/config"
	apperrors "evcharge/pkg/errors"
	"evcharge/pkg/logger"
	"evcharge/pkg/model"
	"evcharge/pkg/payments"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProcessor struct {
	createIntentFunc func(ctx context.Context, amount float64, stationID int) (payments.Intent, error)
	succeededFunc    func(ctx context.Context, paymentID string) (bool, error)
	refundFunc       func(ctx context.Context, paymentID string) error
	refunded         []string
}

func (m *mockProcessor) CreateIntent(ctx context.Context, amount float64, stationID int) (payments.Intent, error) {
	if m.createIntentFunc != nil {
		return m.createIntentFunc(ctx, amount, stationID)
	}
	return payments.Intent{ID: "pi_1", ClientSecret: "pi_1_secret"}, nil
}

func (m *mockProcessor) Succeeded(ctx context.Context, paymentID string) (bool, error) {
	if m.succeededFunc != nil {
		return m.succeededFunc(ctx, paymentID)
	}
	return true, nil
}

func (m *mockProcessor) Refund(ctx context.Context, paymentID string) error {
	m.refunded = append(m.refunded, paymentID)
	if m.refundFunc != nil {
		return m.refundFunc(ctx, paymentID)
	}
	return nil
}

type fixture struct {
	svc       BookingService
	repo      repository.BookingRepository
	locks     repository.BookingLockRepository
	processor *mockProcessor
}

func newFixture() *fixture {
	log := logger.Discard()
	cfg := &config.Config{Log: log}
	f := &fixture{
		repo:      repository.NewMemoryBookingRepository(),
		locks:     repository.NewMemoryBookingLockRepository(),
		processor: &mockProcessor{},
	}
	f.svc = NewBookingService(
		f.repo,
		f.locks,
		stationsrepo.NewMemoryStationRepository(model.DefaultStations()),
		f.processor,
		validator.NewBookingValidator(log),
		cfg,
	)
	return f
}

func createReq() *model.BookingCreate {
	return &model.BookingCreate{
		StationID:   1,
		Date:        "2025-03-01",
		StartTime:   "9:00",
		Duration:    2,
		ChargerType: "  DC   Fast ",
		TotalCost:   450,
		PaymentID:   "demo_1",
		PersonName:  " Asha ",
		CarNumber:   "ka-01 ab 1234",
	}
}

func assertAppError(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	assert.Equal(t, status, appErr.StatusCode())
}

func TestCreate_NormalisesAndFillsStation(t *testing.T) {
	f := newFixture()

	b, err := f.svc.Create(context.Background(), createReq())

	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, "KA01AB1234", b.CarNumber)
	assert.Equal(t, "09:00", b.StartTime)
	assert.Equal(t, "DC Fast", b.ChargerType)
	assert.Equal(t, "Asha", b.PersonName)
	assert.Equal(t, "Indiranagar Power Hub", b.StationName)
	assert.Equal(t, model.StatusUpcoming, b.Status)
	assert.Nil(t, b.SlotID)
}

func TestCreate_Conflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, err := f.svc.Create(ctx, createReq())
	require.NoError(t, err)

	sameCar := createReq()
	_, err = f.svc.Create(ctx, sameCar)
	assertAppError(t, err, http.StatusConflict)
	assert.Contains(t, err.Error(), "already booked")

	otherCar := createReq()
	otherCar.CarNumber = "MH12XY9999"
	_, err = f.svc.Create(ctx, otherCar)
	assertAppError(t, err, http.StatusConflict)
	assert.Contains(t, err.Error(), "no longer available")

	otherStation := createReq()
	otherStation.StationID = 2
	_, err = f.svc.Create(ctx, otherStation)
	assert.NoError(t, err)
}

func TestCreate_CancelledBookingFreesSlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	first, err := f.svc.Create(ctx, createReq())
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, first.ID)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, createReq())
	assert.NoError(t, err)
}

func TestCreate_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("validation", func(t *testing.T) {
		req := createReq()
		req.Duration = 0
		_, err := newFixture().svc.Create(ctx, req)
		assertAppError(t, err, http.StatusUnprocessableEntity)
	})

	t.Run("unknown station", func(t *testing.T) {
		req := createReq()
		req.StationID = 99
		_, err := newFixture().svc.Create(ctx, req)
		assertAppError(t, err, http.StatusNotFound)
	})

	t.Run("payment not completed", func(t *testing.T) {
		f := newFixture()
		f.processor.succeededFunc = func(context.Context, string) (bool, error) { return false, nil }
		_, err := f.svc.Create(ctx, createReq())
		assertAppError(t, err, http.StatusBadRequest)
	})

	t.Run("payment provider down", func(t *testing.T) {
		f := newFixture()
		f.processor.succeededFunc = func(context.Context, string) (bool, error) { return false, errors.New("timeout") }
		_, err := f.svc.Create(ctx, createReq())
		assertAppError(t, err, http.StatusBadGateway)
	})

	t.Run("payments disabled", func(t *testing.T) {
		f := newFixture()
		f.processor.succeededFunc = func(context.Context, string) (bool, error) { return false, payments.ErrNotConfigured }
		_, err := f.svc.Create(ctx, createReq())
		assertAppError(t, err, http.StatusServiceUnavailable)
	})

	t.Run("slot locked", func(t *testing.T) {
		f := newFixture()
		_, err := f.locks.Create(ctx, &model.BookingLock{
			ID:        lockKey(1, "2025-03-01", "09:00"),
			ExpiresAt: time.Now().Add(time.Minute),
		})
		require.NoError(t, err)

		_, err = f.svc.Create(ctx, createReq())
		assertAppError(t, err, http.StatusConflict)
	})
}

func TestCreate_ReleasesLock(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, err := f.svc.Create(ctx, createReq())
	require.NoError(t, err)

	_, err = f.locks.Create(ctx, &model.BookingLock{
		ID:        lockKey(1, "2025-03-01", "09:00"),
		ExpiresAt: time.Now().Add(time.Minute),
	})
	assert.NoError(t, err)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	b, err := f.svc.Create(ctx, createReq())
	require.NoError(t, err)

	f.processor.refundFunc = func(context.Context, string) error { return errors.New("stripe down") }
	cancelled, err := f.svc.Cancel(ctx, b.ID)

	require.NoError(t, err, "refund failures do not block cancellation")
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	assert.Equal(t, []string{"demo_1"}, f.processor.refunded)

	_, err = f.svc.Cancel(ctx, b.ID)
	assertAppError(t, err, http.StatusConflict)

	_, err = f.svc.Cancel(ctx, "missing")
	assertAppError(t, err, http.StatusNotFound)
}

func TestReschedule(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	b, err := f.svc.Create(ctx, createReq())
	require.NoError(t, err)

	other := createReq()
	other.StartTime = "12:00"
	other.CarNumber = "MH12XY9999"
	_, err = f.svc.Create(ctx, other)
	require.NoError(t, err)

	_, err = f.svc.Reschedule(ctx, b.ID, &model.BookingReschedule{Date: "2025-03-01", StartTime: "12:00"})
	assertAppError(t, err, http.StatusConflict)

	moved, err := f.svc.Reschedule(ctx, b.ID, &model.BookingReschedule{Date: "2025-03-02", StartTime: "8:00"})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-02", moved.Date)
	assert.Equal(t, "08:00", moved.StartTime)

	same, err := f.svc.Reschedule(ctx, b.ID, &model.BookingReschedule{Date: "2025-03-02", StartTime: "08:00"})
	require.NoError(t, err, "moving onto its own cell is not a conflict")
	assert.Equal(t, b.ID, same.ID)

	_, err = f.svc.Reschedule(ctx, b.ID, &model.BookingReschedule{Date: "2025-03-02"})
	assertAppError(t, err, http.StatusBadRequest)

	_, err = f.repo.UpdateStatus(ctx, b.ID, model.StatusActive)
	require.NoError(t, err)
	_, err = f.svc.Reschedule(ctx, b.ID, &model.BookingReschedule{Date: "2025-03-03", StartTime: "08:00"})
	assertAppError(t, err, http.StatusConflict)

	_, err = f.svc.Reschedule(ctx, "missing", &model.BookingReschedule{Date: "2025-03-03", StartTime: "08:00"})
	assertAppError(t, err, http.StatusNotFound)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, err := f.svc.Create(ctx, createReq())
	require.NoError(t, err)

	all, err := f.svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	upcoming, err := f.svc.List(ctx, "upcoming")
	require.NoError(t, err)
	assert.Len(t, upcoming, 1)

	_, err = f.svc.List(ctx, "bogus")
	assertAppError(t, err, http.StatusBadRequest)
}

func TestCreatePaymentIntent(t *testing.T) {
	ctx := context.Background()

	f := newFixture()
	var gotAmount float64
	f.processor.createIntentFunc = func(_ context.Context, amount float64, _ int) (payments.Intent, error) {
		gotAmount = amount
		return payments.Intent{ID: "pi_9", ClientSecret: "secret"}, nil
	}
	intent, err := f.svc.CreatePaymentIntent(ctx, &model.PaymentIntentCreate{StationID: 2, TotalCost: 370})
	require.NoError(t, err)
	assert.Equal(t, "secret", intent.ClientSecret)
	assert.Equal(t, "pi_9", intent.PaymentIntentID)
	assert.Equal(t, 370.0, gotAmount)

	_, err = f.svc.CreatePaymentIntent(ctx, &model.PaymentIntentCreate{StationID: 2})
	assertAppError(t, err, http.StatusBadRequest)

	_, err = f.svc.CreatePaymentIntent(ctx, &model.PaymentIntentCreate{StationID: 42, TotalCost: 10})
	assertAppError(t, err, http.StatusNotFound)

	f.processor.createIntentFunc = func(context.Context, float64, int) (payments.Intent, error) {
		return payments.Intent{}, errors.New("card network down")
	}
	_, err = f.svc.CreatePaymentIntent(ctx, &model.PaymentIntentCreate{StationID: 2, TotalCost: 10})
	assertAppError(t, err, http.StatusBadGateway)
}
