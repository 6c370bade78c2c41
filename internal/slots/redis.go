package slots

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "evcharge:slots:"

const (
	occupiedFlag = "1"
	freeFlag     = "0"
)

// reserveScript marks and returns the lowest free slot in 1..ARGV[1], or 0
// when every slot is taken. Runs atomically inside Redis.
var reserveScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
for i = 1, capacity do
  local field = tostring(i)
  if redis.call('HGET', KEYS[1], field) ~= '1' then
    redis.call('HSET', KEYS[1], field, '1')
    return i
  end
end
return 0
`)

type redisRegistry struct {
	rdb      redis.Cmdable
	capacity int
}

// NewRedisRegistry shares occupancy between gateway replicas through one
// hash per station.
func NewRedisRegistry(rdb redis.Cmdable, capacity int) Registry {
	if capacity <= 0 {
		capacity = DefaultSlotsPerStation
	}
	return &redisRegistry{rdb: rdb, capacity: capacity}
}

func stationKey(stationID int) string {
	return keyPrefix + strconv.Itoa(stationID)
}

func (r *redisRegistry) Capacity() int {
	return r.capacity
}

func (r *redisRegistry) SetOccupancy(ctx context.Context, stationID, slotID int, occupied bool) error {
	flag := freeFlag
	if occupied {
		flag = occupiedFlag
	}
	if err := r.rdb.HSet(ctx, stationKey(stationID), strconv.Itoa(slotID), flag).Err(); err != nil {
		return fmt.Errorf("failed to record slot %d of station %d: %w", slotID, stationID, err)
	}
	return nil
}

func (r *redisRegistry) AllocateFreeSlot(ctx context.Context, stationID int) (int, bool, error) {
	state, err := r.load(ctx, stationID)
	if err != nil {
		return 0, false, err
	}
	for slot := 1; slot <= r.capacity; slot++ {
		if !state[slot] {
			return slot, true, nil
		}
	}
	return 0, false, nil
}

func (r *redisRegistry) Reserve(ctx context.Context, stationID int) (int, bool, error) {
	slot, err := reserveScript.Run(ctx, r.rdb, []string{stationKey(stationID)}, r.capacity).Int()
	if err != nil {
		return 0, false, fmt.Errorf("failed to reserve slot at station %d: %w", stationID, err)
	}
	if slot == 0 {
		return 0, false, nil
	}
	return slot, true, nil
}

func (r *redisRegistry) Release(ctx context.Context, stationID, slotID int) error {
	return r.SetOccupancy(ctx, stationID, slotID, false)
}

func (r *redisRegistry) Snapshot(ctx context.Context, stationID int) (map[int]bool, error) {
	state, err := r.load(ctx, stationID)
	if err != nil {
		return nil, err
	}
	out := make(map[int]bool, r.capacity)
	for slot := 1; slot <= r.capacity; slot++ {
		out[slot] = state[slot]
	}
	return out, nil
}

func (r *redisRegistry) load(ctx context.Context, stationID int) (map[int]bool, error) {
	raw, err := r.rdb.HGetAll(ctx, stationKey(stationID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load slots of station %d: %w", stationID, err)
	}

	state := make(map[int]bool, len(raw))
	for field, flag := range raw {
		slot, convErr := strconv.Atoi(field)
		if convErr != nil {
			continue
		}
		state[slot] = flag == occupiedFlag
	}
	return state, nil
}
