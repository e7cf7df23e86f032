// README: Dispatch log backed by Redis keys and sets.
package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"ridehail/internal/types"
)

const (
	dispatchKeyPrefix = "matching:ride:%s:dispatched_at"
	notifiedKeyPrefix = "matching:ride:%s:notified"
	// TTL for dispatch keys (rides should resolve well within 7 days).
	keyTTL = 7 * 24 * time.Hour
)

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

// RecordDispatch records the dispatch timestamp and adds the notified drivers
// to the ride's set.
func (s *Store) RecordDispatch(ctx context.Context, rideID types.ID, at time.Time, driverIDs []types.ID) error {
	pipe := s.redis.Pipeline()
	pipe.Set(ctx, dispatchedAtKey(rideID), at.UTC().Format(time.RFC3339), keyTTL)
	if len(driverIDs) > 0 {
		members := make([]interface{}, len(driverIDs))
		for i, d := range driverIDs {
			members[i] = string(d)
		}
		pipe.SAdd(ctx, notifiedKey(rideID), members...)
		pipe.Expire(ctx, notifiedKey(rideID), keyTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) GetDispatch(ctx context.Context, rideID types.ID) (*DispatchRecord, error) {
	val, err := s.redis.Get(ctx, dispatchedAtKey(rideID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotDispatched
	}
	if err != nil {
		return nil, err
	}
	at, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil, err
	}
	members, err := s.redis.SMembers(ctx, notifiedKey(rideID)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(members)
	rec := &DispatchRecord{RideID: rideID, DispatchedAt: at, NotifiedDrivers: make([]types.ID, len(members))}
	for i, m := range members {
		rec.NotifiedDrivers[i] = types.ID(m)
	}
	return rec, nil
}

func dispatchedAtKey(rideID types.ID) string {
	return fmt.Sprintf(dispatchKeyPrefix, string(rideID))
}

func notifiedKey(rideID types.ID) string {
	return fmt.Sprintf(notifiedKeyPrefix, string(rideID))
}
