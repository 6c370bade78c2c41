package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidTransition = errors.New("booking status transition not allowed")

	ErrNotReschedulable = errors.New("only upcoming bookings can be rescheduled")

	ErrSlotTaken = errors.New("time slot no longer available")

	ErrCarAlreadyBooked = errors.New("car already booked for this slot")

	ErrLockHeld = errors.New("booking slot is locked by another request")
)
