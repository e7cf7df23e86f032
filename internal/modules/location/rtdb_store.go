// README: Latest-sample source backed by Firebase Realtime Database.
package location

import (
	"context"
	"fmt"
	"time"

	"firebase.google.com/go/v4/db"

	"ridehail/internal/types"
)

const rtdbLocationsNode = "driver_locations"

// rtdbSampleEntry mirrors a single entry under /driver_locations/{user_id}.
// The mobile client overwrites it on every report, so it is always the
// latest sample for that user.
type rtdbSampleEntry struct {
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	Heading   *float64 `json:"heading,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Timestamp int64    `json:"timestamp"` // unix millis
}

// RTDBSampleStore reads and writes latest samples in Firebase RTDB.
type RTDBSampleStore struct {
	client *db.Client
}

func NewRTDBSampleStore(client *db.Client) *RTDBSampleStore {
	return &RTDBSampleStore{client: client}
}

func (s *RTDBSampleStore) LatestSamples(ctx context.Context, ownerIDs []types.ID) (map[types.ID]Sample, error) {
	out := make(map[types.ID]Sample, len(ownerIDs))
	if len(ownerIDs) == 0 {
		return out, nil
	}

	var data map[string]rtdbSampleEntry
	if err := s.client.NewRef(rtdbLocationsNode).Get(ctx, &data); err != nil {
		return nil, fmt.Errorf("querying driver locations: %w", err)
	}
	for _, id := range ownerIDs {
		entry, ok := data[string(id)]
		if !ok || entry.Timestamp == 0 {
			continue
		}
		out[id] = entry.toSample(id)
	}
	return out, nil
}

func (s *RTDBSampleStore) AppendSample(ctx context.Context, smp Sample) error {
	entry := rtdbSampleEntry{
		Lat:       smp.Position.Lat,
		Lng:       smp.Position.Lng,
		Heading:   smp.Heading,
		Speed:     smp.Speed,
		Accuracy:  smp.Accuracy,
		Timestamp: smp.CapturedAt.UnixMilli(),
	}
	if err := s.client.NewRef(rtdbLocationsNode).Child(string(smp.OwnerID)).Set(ctx, entry); err != nil {
		return fmt.Errorf("writing location for %s: %w", string(smp.OwnerID), err)
	}
	return nil
}

func (e rtdbSampleEntry) toSample(owner types.ID) Sample {
	return Sample{
		OwnerID:    owner,
		Position:   types.Point{Lat: e.Lat, Lng: e.Lng},
		Heading:    e.Heading,
		Speed:      e.Speed,
		Accuracy:   e.Accuracy,
		CapturedAt: time.UnixMilli(e.Timestamp).UTC(),
	}
}
