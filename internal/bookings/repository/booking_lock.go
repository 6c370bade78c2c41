package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	bookingserrors "evcharge/internal/bookings/errors"
	"evcharge/pkg/config"
	"evcharge/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const LockCollectionName = "Booking_locks"

// BookingLockRepository provides advisory locks on booking cells.
// Create returns ErrLockHeld when the lock is already taken.
type BookingLockRepository interface {
	Create(ctx context.Context, lock *model.BookingLock) (*model.BookingLock, error)
	Delete(ctx context.Context, lockID string) error
}

type mongoBookingLockRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewBookingLockRepository(cfg *config.Config) BookingLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingLockRepository{
		cfg:        cfg,
		collection: db.Collection(LockCollectionName),
	}
}

// Expired locks are reaped by the TTL index on expires_at.
func (r *mongoBookingLockRepository) Create(ctx context.Context, lock *model.BookingLock) (*model.BookingLock, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	lock.CreatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, lock)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, bookingserrors.ErrLockHeld
		}
		return nil, fmt.Errorf("failed to create booking lock: %w", err)
	}

	return lock, nil
}

func (r *mongoBookingLockRepository) Delete(ctx context.Context, lockID string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID})
	return err
}

type memoryBookingLockRepository struct {
	mu    sync.Mutex
	locks map[string]model.BookingLock
	now   func() time.Time
}

func NewMemoryBookingLockRepository() BookingLockRepository {
	return &memoryBookingLockRepository{
		locks: make(map[string]model.BookingLock),
		now:   time.Now,
	}
}

func (r *memoryBookingLockRepository) Create(_ context.Context, lock *model.BookingLock) (*model.BookingLock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if held, ok := r.locks[lock.ID]; ok && now.Before(held.ExpiresAt) {
		return nil, bookingserrors.ErrLockHeld
	}

	lock.CreatedAt = now
	r.locks[lock.ID] = *lock
	return lock, nil
}

func (r *memoryBookingLockRepository) Delete(_ context.Context, lockID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.locks, lockID)
	return nil
}
