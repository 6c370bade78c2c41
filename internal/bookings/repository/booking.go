package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "evcharge/internal/bookings/errors"
	"evcharge/pkg/config"
	"evcharge/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bookings"
)

// BookingRepository is the booking store. Every mutating call is an atomic
// single-record read-modify-write; there are no cross-record transactions.
type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	// FindAll lists bookings newest first, optionally filtered by status.
	FindAll(ctx context.Context, status model.BookingStatus) ([]*model.Booking, error)
	// FindByPlate returns every booking for the plate in insertion order.
	FindByPlate(ctx context.Context, plate string) ([]*model.Booking, error)
	FindByStationAndDate(ctx context.Context, stationID int, date string) ([]*model.Booking, error)
	UpdateStatus(ctx context.Context, id string, status model.BookingStatus) (*model.Booking, error)
	AssignSlot(ctx context.Context, id string, slotID int) (*model.Booking, error)
	Reschedule(ctx context.Context, id, date, startTime string) (*model.Booking, error)
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

// withTimeout bounds ctx by timeout unless the caller already set a tighter
// deadline. Session contexts are returned untouched.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	booking.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	if _, err := r.collection.InsertOne(ctx, booking); err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var booking model.Booking
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) FindAll(ctx context.Context, status model.BookingStatus) ([]*model.Booking, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.find(ctx, filter, opts)
}

func (r *mongoBookingRepository) FindByPlate(ctx context.Context, plate string) ([]*model.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return r.find(ctx, bson.M{"car_number": plate}, opts)
}

func (r *mongoBookingRepository) FindByStationAndDate(ctx context.Context, stationID int, date string) ([]*model.Booking, error) {
	filter := bson.M{
		"station_id": stationID,
		"date":       date,
	}
	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}})
	return r.find(ctx, filter, opts)
}

func (r *mongoBookingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []*model.Booking{}
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) UpdateStatus(ctx context.Context, id string, status model.BookingStatus) (*model.Booking, error) {
	sources := model.TransitionSources(status)
	if len(sources) == 0 {
		return nil, bookingserrors.ErrInvalidTransition
	}

	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$in": sources},
	}
	update := bson.M{"$set": bson.M{"status": status}}

	return r.findOneAndUpdate(ctx, id, filter, update, bookingserrors.ErrInvalidTransition)
}

func (r *mongoBookingRepository) AssignSlot(ctx context.Context, id string, slotID int) (*model.Booking, error) {
	update := bson.M{"$set": bson.M{"slot_id": slotID}}
	return r.findOneAndUpdate(ctx, id, bson.M{"_id": id}, update, nil)
}

func (r *mongoBookingRepository) Reschedule(ctx context.Context, id, date, startTime string) (*model.Booking, error) {
	filter := bson.M{
		"_id":    id,
		"status": model.StatusUpcoming,
	}
	update := bson.M{"$set": bson.M{
		"date":       date,
		"start_time": startTime,
	}}

	return r.findOneAndUpdate(ctx, id, filter, update, bookingserrors.ErrNotReschedulable)
}

// findOneAndUpdate applies update when filter matches. When nothing matches
// it tells a missing booking apart from a failed precondition.
func (r *mongoBookingRepository) findOneAndUpdate(ctx context.Context, id string, filter, update bson.M, preconditionErr error) (*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var booking model.Booking
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&booking)
	if err == nil {
		return &booking, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}
	if preconditionErr == nil {
		return nil, bookingserrors.ErrNotFound
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to check booking existence: %w", err)
	}
	if count == 0 {
		return nil, bookingserrors.ErrNotFound
	}
	return nil, preconditionErr
}
