package slots

import (
	"context"
	"sync"
)

type memoryRegistry struct {
	mu       sync.Mutex
	stations map[int]map[int]bool
	capacity int
}

// NewMemoryRegistry keeps occupancy in process memory. State is lost on
// restart and rebuilt from the next round of sensor telemetry.
func NewMemoryRegistry(capacity int) Registry {
	if capacity <= 0 {
		capacity = DefaultSlotsPerStation
	}
	return &memoryRegistry{
		stations: make(map[int]map[int]bool),
		capacity: capacity,
	}
}

func (r *memoryRegistry) Capacity() int {
	return r.capacity
}

func (r *memoryRegistry) SetOccupancy(_ context.Context, stationID, slotID int, occupied bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.station(stationID)[slotID] = occupied
	return nil
}

func (r *memoryRegistry) AllocateFreeSlot(_ context.Context, stationID int) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.firstFree(stationID)
	return slot, ok, nil
}

func (r *memoryRegistry) Reserve(_ context.Context, stationID int) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.firstFree(stationID)
	if !ok {
		return 0, false, nil
	}
	r.station(stationID)[slot] = true
	return slot, true, nil
}

func (r *memoryRegistry) Release(_ context.Context, stationID, slotID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.station(stationID)[slotID] = false
	return nil
}

func (r *memoryRegistry) Snapshot(_ context.Context, stationID int) (map[int]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[int]bool, r.capacity)
	state := r.stations[stationID]
	for slot := 1; slot <= r.capacity; slot++ {
		out[slot] = state[slot]
	}
	return out, nil
}

// station returns the state map, creating it on first reference.
// Caller holds r.mu.
func (r *memoryRegistry) station(stationID int) map[int]bool {
	state, ok := r.stations[stationID]
	if !ok {
		state = make(map[int]bool)
		r.stations[stationID] = state
	}
	return state
}

// Caller holds r.mu.
func (r *memoryRegistry) firstFree(stationID int) (int, bool) {
	state, ok := r.stations[stationID]
	if !ok {
		return 1, true
	}
	for slot := 1; slot <= r.capacity; slot++ {
		if !state[slot] {
			return slot, true
		}
	}
	return 0, false
}
