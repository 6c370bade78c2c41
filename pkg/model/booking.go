package model

import (
	"fmt"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

type BookingStatus string

const (
	StatusUpcoming  BookingStatus = "upcoming"
	StatusActive    BookingStatus = "active"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
)

// allowedTransitions lists, for every target status, the statuses a booking
// may move from. Status only ever moves forward.
var allowedTransitions = map[BookingStatus][]BookingStatus{
	StatusActive:    {StatusUpcoming},
	StatusCompleted: {StatusActive},
	StatusCancelled: {StatusUpcoming, StatusActive},
}

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusUpcoming, StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, from := range allowedTransitions[next] {
		if from == s {
			return true
		}
	}
	return false
}

// TransitionSources returns the statuses next may be reached from.
func TransitionSources(next BookingStatus) []BookingStatus {
	return allowedTransitions[next]
}

type Booking struct {
	ID          string        `json:"id" bson:"_id"`
	StationID   int           `json:"stationId" bson:"station_id"`
	StationName string        `json:"stationName" bson:"station_name"`
	Location    string        `json:"location" bson:"location"`
	Date        string        `json:"date" bson:"date"`
	StartTime   string        `json:"startTime" bson:"start_time"`
	Duration    int           `json:"duration" bson:"duration"`
	ChargerType string        `json:"chargerType" bson:"charger_type"`
	Status      BookingStatus `json:"status" bson:"status"`
	TotalCost   float64       `json:"totalCost" bson:"total_cost"`
	PaymentID   string        `json:"paymentId,omitempty" bson:"payment_id,omitempty"`
	PersonName  string        `json:"personName,omitempty" bson:"person_name,omitempty"`
	CarModel    string        `json:"carModel,omitempty" bson:"car_model,omitempty"`
	CarNumber   string        `json:"carNumber" bson:"car_number"`
	SlotID      *int          `json:"slotId" bson:"slot_id"`
	CreatedAt   time.Time     `json:"createdAt" bson:"created_at"`
}

// Window returns the scheduled [start, end) interval of the booking with the
// calendar date and wall clock interpreted in loc.
func (b *Booking) Window(loc *time.Location) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, b.Date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid booking date %q: %w", b.Date, err)
	}
	clock, err := time.Parse(ClockLayout, b.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid booking start time %q: %w", b.StartTime, err)
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
	end := start.Add(time.Duration(b.Duration) * time.Hour)
	return start, end, nil
}

// BookingCreate is the client payload for a new booking. Station name and
// location are filled from the station catalogue.
type BookingCreate struct {
	StationID   int     `json:"stationId" validate:"required,min=1"`
	Date        string  `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime   string  `json:"startTime" validate:"required,datetime=15:04"`
	Duration    int     `json:"duration" validate:"required,min=1,max=12"`
	ChargerType string  `json:"chargerType" validate:"required,min=2,max=50"`
	TotalCost   float64 `json:"totalCost" validate:"gte=0"`
	PaymentID   string  `json:"paymentId" validate:"required,max=255"`
	PersonName  string  `json:"personName" validate:"omitempty,max=100"`
	CarModel    string  `json:"carModel" validate:"omitempty,max=100"`
	CarNumber   string  `json:"carNumber" validate:"required,plate"`
}

type BookingReschedule struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"startTime" validate:"required,datetime=15:04"`
}

type PaymentIntentCreate struct {
	StationID int     `json:"stationId" validate:"required,min=1"`
	TotalCost float64 `json:"totalCost" validate:"required,gt=0"`
}

type PaymentIntent struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}
