package slots

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRegistry_UnknownStationDefaultsToFirstSlot(t *testing.T) {
	reg := NewMemoryRegistry(3)

	slot, ok, err := reg.AllocateFreeSlot(context.Background(), 42)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, slot)
}

func TestMemoryRegistry_AllocateScansAscending(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry(3)

	require.NoError(t, reg.SetOccupancy(ctx, 1, 1, true))
	slot, ok, _ := reg.AllocateFreeSlot(ctx, 1)
	assert.True(t, ok)
	assert.Equal(t, 2, slot)

	require.NoError(t, reg.SetOccupancy(ctx, 1, 2, true))
	slot, ok, _ = reg.AllocateFreeSlot(ctx, 1)
	assert.True(t, ok)
	assert.Equal(t, 3, slot)

	require.NoError(t, reg.SetOccupancy(ctx, 1, 3, true))
	_, ok, _ = reg.AllocateFreeSlot(ctx, 1)
	assert.False(t, ok, "station is full")

	require.NoError(t, reg.SetOccupancy(ctx, 1, 2, false))
	slot, ok, _ = reg.AllocateFreeSlot(ctx, 1)
	assert.True(t, ok)
	assert.Equal(t, 2, slot, "freed slot becomes available again")
}

func TestMemoryRegistry_AllocateDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry(3)

	first, _, _ := reg.AllocateFreeSlot(ctx, 1)
	second, _, _ := reg.AllocateFreeSlot(ctx, 1)

	assert.Equal(t, first, second)
}

func TestMemoryRegistry_OutOfRangeSlotIsStoredButNeverAllocated(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry(3)

	require.NoError(t, reg.SetOccupancy(ctx, 1, 7, false))
	for _, s := range []int{1, 2, 3} {
		require.NoError(t, reg.SetOccupancy(ctx, 1, s, true))
	}

	_, ok, _ := reg.AllocateFreeSlot(ctx, 1)
	assert.False(t, ok)

	snap, err := reg.Snapshot(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, snap, 3)
	assert.NotContains(t, snap, 7)
}

func TestMemoryRegistry_ReserveMarksSlot(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry(3)

	for want := 1; want <= 3; want++ {
		slot, ok, err := reg.Reserve(ctx, 9)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, slot)
	}

	_, ok, err := reg.Reserve(ctx, 9)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, reg.Release(ctx, 9, 2))
	slot, ok, _ := reg.Reserve(ctx, 9)
	assert.True(t, ok)
	assert.Equal(t, 2, slot)

	require.NoError(t, reg.SetOccupancy(ctx, 9, 3, false))
	slot, ok, _ = reg.Reserve(ctx, 9)
	assert.True(t, ok, "a sensor reading frees a reserved slot")
	assert.Equal(t, 3, slot)
}

func TestMemoryRegistry_ConcurrentReserveNeverDoubleAllocates(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry(3)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted []int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if slot, ok, _ := reg.Reserve(ctx, 1); ok {
				mu.Lock()
				granted = append(granted, slot)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []int{1, 2, 3}, granted)
}

func TestMemoryRegistry_Snapshot(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry(3)
	require.NoError(t, reg.SetOccupancy(ctx, 2, 3, true))

	snap, err := reg.Snapshot(ctx, 2)

	require.NoError(t, err)
	assert.Equal(t, map[int]bool{1: false, 2: false, 3: true}, snap)
}
