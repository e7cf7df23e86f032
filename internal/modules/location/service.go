// README: Location service: nearby-driver search, sample reporting, driver availability.
package location

import (
	"context"
	"math"
	"time"

	"ridehail/internal/geo"
	"ridehail/internal/types"
)

type DriverStore interface {
	ListDispatchable(ctx context.Context) ([]Driver, error)
	Get(ctx context.Context, id types.ID) (*Driver, error)
	GetByUser(ctx context.Context, userID types.ID) (*Driver, error)
	UpdateStatus(ctx context.Context, id types.ID, to DriverStatus) (bool, error)
	SetAvailability(ctx context.Context, id types.ID, to DriverStatus) (bool, error)
}

// SampleStore is where latest location samples live (Postgres or RTDB).
type SampleStore interface {
	LatestSamples(ctx context.Context, ownerIDs []types.ID) (map[types.ID]Sample, error)
	AppendSample(ctx context.Context, smp Sample) error
}

type Service struct {
	drivers DriverStore
	samples SampleStore
	now     func() time.Time
}

func NewService(drivers DriverStore, samples SampleStore) *Service {
	return &Service{drivers: drivers, samples: samples, now: time.Now}
}

// FindNearby returns eligible drivers within q.RadiusKm of the pickup, closest
// first. A driver is eligible when online, verified, has a sample no older than
// q.RecencyMinutes and matches the vehicle type (unless VehicleTypeAny).
// An empty result means no coverage and is not an error.
func (s *Service) FindNearby(ctx context.Context, q NearbyQuery) ([]NearbyDriver, error) {
	drivers, err := s.drivers.ListDispatchable(ctx)
	if err != nil {
		return nil, err
	}
	result := []NearbyDriver{}
	if len(drivers) == 0 {
		return result, nil
	}

	owners := make([]types.ID, len(drivers))
	for i, d := range drivers {
		owners[i] = d.UserID
	}
	samples, err := s.samples.LatestSamples(ctx, owners)
	if err != nil {
		return nil, err
	}

	cutoff := s.now().Add(-time.Duration(q.RecencyMinutes * float64(time.Minute)))
	type candidate struct {
		d    Driver
		smp  Sample
		dist float64
	}
	var cands []candidate
	for _, d := range drivers {
		smp, ok := samples[d.UserID]
		if !ok || smp.CapturedAt.Before(cutoff) {
			continue
		}
		if q.VehicleType != VehicleTypeAny && d.VehicleType != q.VehicleType {
			continue
		}
		dist := geo.DistanceKm(q.Pickup, smp.Position)
		if dist > q.RadiusKm {
			continue
		}
		cands = append(cands, candidate{d: d, smp: smp, dist: dist})
	}

	geo.SortByDistance(cands, func(c candidate) float64 { return c.dist })

	for _, c := range cands {
		km := types.RoundTo(c.dist, 1)
		result = append(result, NearbyDriver{
			DriverID:    c.d.ID,
			UserID:      c.d.UserID,
			VehicleType: c.d.VehicleType,
			Position:    c.smp.Position,
			DistanceKm:  km,
			EtaMinutes:  int(math.Round(km * etaMinutesPerKm)),
			SampledAt:   c.smp.CapturedAt,
		})
	}
	return result, nil
}

type ReportCommand struct {
	UserID   types.ID
	Position types.Point
	Heading  *float64
	Speed    *float64
	Accuracy *float64
	// CapturedAt defaults to now when zero.
	CapturedAt time.Time
}

// Report records a new location sample for a user.
func (s *Service) Report(ctx context.Context, cmd ReportCommand) error {
	at := cmd.CapturedAt
	if at.IsZero() {
		at = s.now()
	}
	return s.samples.AppendSample(ctx, Sample{
		OwnerID:    cmd.UserID,
		Position:   cmd.Position,
		Heading:    cmd.Heading,
		Speed:      cmd.Speed,
		Accuracy:   cmd.Accuracy,
		CapturedAt: at.UTC(),
	})
}

// SetStatus toggles a driver between online and offline. Suspended drivers
// cannot change their own status, and a driver on a ride stays busy until the
// ride ends.
func (s *Service) SetStatus(ctx context.Context, driverID types.ID, to DriverStatus) error {
	if to != DriverOnline && to != DriverOffline {
		return ErrInvalidStatus
	}
	ok, err := s.drivers.SetAvailability(ctx, driverID, to)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	d, err := s.drivers.Get(ctx, driverID)
	if err != nil {
		return err
	}
	switch d.Status {
	case DriverBusy:
		return ErrDriverBusy
	case DriverSuspended:
		return ErrDriverSuspended
	}
	return ErrInvalidStatus
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Driver, error) {
	return s.drivers.Get(ctx, id)
}

func (s *Service) DriverByUser(ctx context.Context, userID types.ID) (*Driver, error) {
	return s.drivers.GetByUser(ctx, userID)
}

// MarkBusy takes an assigned driver out of the dispatch pool.
func (s *Service) MarkBusy(ctx context.Context, driverID types.ID) error {
	return s.flip(ctx, driverID, DriverBusy)
}

// MarkAvailable returns a driver to the pool once their ride ends.
func (s *Service) MarkAvailable(ctx context.Context, driverID types.ID) error {
	return s.flip(ctx, driverID, DriverOnline)
}

func (s *Service) flip(ctx context.Context, driverID types.ID, to DriverStatus) error {
	ok, err := s.drivers.UpdateStatus(ctx, driverID, to)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDriverSuspended
	}
	return nil
}
