package model

import "time"

// BookingLock is a short-lived advisory lock on one (station, date, start)
// cell, held while a booking is created or moved into it.
type BookingLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
