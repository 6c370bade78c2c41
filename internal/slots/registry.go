// Package slots tracks which physical charging bays of each station are
// occupied and hands out free bays to cars entering the site.
package slots

import "context"

const DefaultSlotsPerStation = 3

// Registry is the live occupancy table. Slot ids run 1..N per station. An
// unrecorded slot counts as free and a station with no recorded state at all
// counts as fully free.
type Registry interface {
	// SetOccupancy records a sensor reading. Out-of-range slot ids are stored
	// but never allocated.
	SetOccupancy(ctx context.Context, stationID, slotID int, occupied bool) error

	// AllocateFreeSlot returns the lowest free slot without marking it.
	// ok is false when all N slots are occupied.
	AllocateFreeSlot(ctx context.Context, stationID int) (slotID int, ok bool, err error)

	// Reserve atomically finds the lowest free slot and marks it occupied.
	// The slot stays occupied until a SetOccupancy reading or Release frees
	// it. Completing or cancelling the booking does not.
	Reserve(ctx context.Context, stationID int) (slotID int, ok bool, err error)

	// Release marks a slot free again.
	Release(ctx context.Context, stationID, slotID int) error

	// Snapshot returns the recorded state of slots 1..N.
	Snapshot(ctx context.Context, stationID int) (map[int]bool, error)

	Capacity() int
}
