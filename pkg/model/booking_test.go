package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to BookingStatus
		allowed  bool
	}{
		{StatusUpcoming, StatusActive, true},
		{StatusActive, StatusCompleted, true},
		{StatusUpcoming, StatusCancelled, true},
		{StatusActive, StatusCancelled, true},
		{StatusUpcoming, StatusCompleted, false},
		{StatusActive, StatusUpcoming, false},
		{StatusCompleted, StatusActive, false},
		{StatusCancelled, StatusUpcoming, false},
		{StatusCompleted, StatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestBooking_Window(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	b := &Booking{Date: "2025-03-01", StartTime: "14:00", Duration: 2}

	start, end, err := b.Window(loc)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 3, 1, 14, 0, 0, 0, loc), start)
	assert.Equal(t, time.Date(2025, 3, 1, 16, 0, 0, 0, loc), end)
}

func TestBooking_Window_CrossesMidnight(t *testing.T) {
	b := &Booking{Date: "2025-03-01", StartTime: "23:00", Duration: 3}

	_, end, err := b.Window(time.UTC)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 3, 2, 2, 0, 0, 0, time.UTC), end)
}

func TestBooking_Window_InvalidSchedule(t *testing.T) {
	_, _, err := (&Booking{Date: "01/03/2025", StartTime: "14:00"}).Window(time.UTC)
	assert.Error(t, err)

	_, _, err = (&Booking{Date: "2025-03-01", StartTime: "2pm"}).Window(time.UTC)
	assert.Error(t, err)
}
