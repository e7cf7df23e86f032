package pricing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ridehail/internal/geo"
	"ridehail/internal/types"
)

// ---------------------------------------------------------------------------
// In-memory fakes
// ---------------------------------------------------------------------------

type fakeConfig struct {
	mu         sync.Mutex
	matrices   map[string]FareMatrix
	rentals    map[string][]RentalFare
	outstation map[string]OutstationFare
	airport    map[string]AirportFare
	zones      []geo.Zone
	zoneReads  int
}

func newFakeConfig() *fakeConfig {
	return &fakeConfig{
		matrices:   map[string]FareMatrix{},
		rentals:    map[string][]RentalFare{},
		outstation: map[string]OutstationFare{},
		airport:    map[string]AirportFare{},
	}
}

func (f *fakeConfig) ActiveFareMatrix(_ context.Context, bt BookingType, vt string) (FareMatrix, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matrices[string(bt)+"/"+vt]
	if !ok {
		return FareMatrix{}, fmt.Errorf("%w: fare_matrix %s/%s", ErrConfigurationMissing, bt, vt)
	}
	return m, nil
}

func (f *fakeConfig) ActiveRentalPackages(_ context.Context, vt string) ([]RentalFare, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rentals[vt], nil
}

func (f *fakeConfig) ActiveOutstationFare(_ context.Context, vt string) (OutstationFare, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.outstation[vt]
	if !ok {
		return OutstationFare{}, ErrConfigurationMissing
	}
	return o, nil
}

func (f *fakeConfig) ActiveAirportFare(_ context.Context, vt string) (AirportFare, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.airport[vt]
	if !ok {
		return AirportFare{}, ErrConfigurationMissing
	}
	return a, nil
}

func (f *fakeConfig) ActiveZones(_ context.Context) ([]geo.Zone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.zoneReads++
	return append([]geo.Zone(nil), f.zones...), nil
}

type fakeLedger struct {
	mu         sync.Mutex
	trips      map[types.ID]Trip
	breakdowns map[types.ID]FareBreakdown
	tripReads  int
	saveErr    error
}

func newFakeLedger(trips ...Trip) *fakeLedger {
	l := &fakeLedger{trips: map[types.ID]Trip{}, breakdowns: map[types.ID]FareBreakdown{}}
	for _, t := range trips {
		l.trips[t.RideID] = t
	}
	return l
}

func (l *fakeLedger) Trip(_ context.Context, rideID types.ID) (Trip, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tripReads++
	t, ok := l.trips[rideID]
	if !ok {
		return Trip{}, ErrRideNotFound
	}
	return t, nil
}

func (l *fakeLedger) SaveBreakdown(_ context.Context, b *FareBreakdown) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.saveErr != nil {
		return l.saveErr
	}
	if prev, ok := l.breakdowns[b.RideID]; ok {
		b.ID = prev.ID
		b.CreatedAt = prev.CreatedAt
	}
	l.breakdowns[b.RideID] = *b
	return nil
}

func (l *fakeLedger) GetBreakdown(_ context.Context, rideID types.ID) (*FareBreakdown, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.breakdowns[rideID]
	if !ok {
		return nil, ErrBreakdownNotFound
	}
	return &b, nil
}

var fixedNow = time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)

func newTestService(cfg *fakeConfig, ledger *fakeLedger) *Service {
	svc := NewService(cfg, ledger, cityCenter, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func regularSedan() FareMatrix {
	return FareMatrix{ID: "fm1", BookingType: BookingRegular, VehicleType: "sedan",
		BaseFare: 50, PerKmRate: 12, BaseKmIncluded: 4, SurgeMultiplier: 1, PlatformFee: 10}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestCalculateAndStore_Regular(t *testing.T) {
	cfg := newFakeConfig()
	cfg.matrices["regular/sedan"] = regularSedan()
	ledger := newFakeLedger(Trip{RideID: "ride-1", BookingType: BookingRegular, VehicleType: "sedan"})
	svc := newTestService(cfg, ledger)

	b, err := svc.CalculateAndStore(context.Background(), CalculateCommand{
		RideID: "ride-1", DistanceKm: 10, DurationMinutes: 25,
		Pickup: cityCenter, Drop: northOf(cityCenter, 6),
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	assertMoney(t, "total_fare", b.TotalFare, 139.9)
	if b.RideID != "ride-1" || b.BookingType != BookingRegular || b.VehicleType != "sedan" {
		t.Fatalf("identity fields = %+v", b)
	}
	if b.DistanceKm != 10 || b.DurationMinutes != 25 {
		t.Fatalf("measurements = %v km, %v min", b.DistanceKm, b.DurationMinutes)
	}

	stored, err := svc.Get(context.Background(), "ride-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	assertMoney(t, "stored total", stored.TotalFare, 139.9)
}

func TestCalculateAndStore_DeadheadFromInnerZone(t *testing.T) {
	cfg := newFakeConfig()
	cfg.matrices["regular/sedan"] = regularSedan()
	cfg.zones = []geo.Zone{{ID: "z1", Name: "CBD", Role: geo.ZoneRoleInner, Center: cityCenter, RadiusKm: 5, IsActive: true}}
	ledger := newFakeLedger(Trip{RideID: "ride-1", BookingType: BookingRegular, VehicleType: "sedan"})
	svc := newTestService(cfg, ledger)

	b, err := svc.CalculateAndStore(context.Background(), CalculateCommand{
		RideID: "ride-1", DistanceKm: 10, Pickup: cityCenter, Drop: northOf(cityCenter, 9),
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	assertMoney(t, "deadhead_charges", b.DeadheadCharges, 24)
	if b.Details.ZoneDetected != "CBD" {
		t.Fatalf("zone detected = %q", b.Details.ZoneDetected)
	}
}

func TestCalculateAndStore_ZonesReadEveryCall(t *testing.T) {
	cfg := newFakeConfig()
	cfg.matrices["regular/sedan"] = regularSedan()
	ledger := newFakeLedger(Trip{RideID: "ride-1", BookingType: BookingRegular, VehicleType: "sedan"})
	svc := newTestService(cfg, ledger)

	cmd := CalculateCommand{RideID: "ride-1", DistanceKm: 10, Pickup: cityCenter, Drop: northOf(cityCenter, 9)}
	first, err := svc.CalculateAndStore(context.Background(), cmd)
	if err != nil {
		t.Fatalf("first: %v", err)
	}

	cfg.mu.Lock()
	cfg.zones = []geo.Zone{{ID: "z1", Name: "Inner Ring", Center: cityCenter, RadiusKm: 5, IsActive: true}}
	cfg.mu.Unlock()

	second, err := svc.CalculateAndStore(context.Background(), cmd)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if cfg.zoneReads != 2 {
		t.Fatalf("zone reads = %d, want 2", cfg.zoneReads)
	}
	if first.DeadheadCharges != 0 || second.DeadheadCharges == 0 {
		t.Fatalf("deadhead first=%v second=%v", first.DeadheadCharges, second.DeadheadCharges)
	}
}

func TestCalculateAndStore_RecalculationReplacesRow(t *testing.T) {
	cfg := newFakeConfig()
	cfg.matrices["regular/sedan"] = regularSedan()
	ledger := newFakeLedger(Trip{RideID: "ride-1", BookingType: BookingRegular, VehicleType: "sedan"})
	svc := newTestService(cfg, ledger)

	first, err := svc.CalculateAndStore(context.Background(), CalculateCommand{RideID: "ride-1", DistanceKm: 10})
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := svc.CalculateAndStore(context.Background(), CalculateCommand{RideID: "ride-1", DistanceKm: 12})
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if len(ledger.breakdowns) != 1 {
		t.Fatalf("breakdowns = %d, want 1", len(ledger.breakdowns))
	}
	if second.ID != first.ID {
		t.Fatalf("id changed on recalculation: %s -> %s", first.ID, second.ID)
	}
	assertMoney(t, "distance_fare", ledger.breakdowns["ride-1"].DistanceFare, 96)
}

func TestCalculateAndStore_Rental(t *testing.T) {
	cfg := newFakeConfig()
	cfg.rentals["sedan"] = []RentalFare{
		{ID: "r4", VehicleType: "sedan", DurationHours: 4, KmIncluded: 40, BaseFare: 900, ExtraKmRate: 14},
		{ID: "r8", VehicleType: "sedan", DurationHours: 8, KmIncluded: 80, BaseFare: 1500, ExtraKmRate: 15},
	}
	ledger := newFakeLedger(Trip{RideID: "ride-r", BookingType: BookingRental, VehicleType: "sedan"})
	svc := newTestService(cfg, ledger)

	b, err := svc.CalculateAndStore(context.Background(), CalculateCommand{RideID: "ride-r", DistanceKm: 95, DurationMinutes: 7 * 60})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if b.Details.PackageHours != 8 {
		t.Fatalf("package hours = %d, want 8", b.Details.PackageHours)
	}
	assertMoney(t, "total_fare", b.TotalFare, 1725)
}

func TestCalculateAndStore_RentalWithoutPackages(t *testing.T) {
	ledger := newFakeLedger(Trip{RideID: "ride-r", BookingType: BookingRental, VehicleType: "suv"})
	svc := newTestService(newFakeConfig(), ledger)

	_, err := svc.CalculateAndStore(context.Background(), CalculateCommand{RideID: "ride-r", DistanceKm: 10, DurationMinutes: 60})
	if !errors.Is(err, ErrConfigurationMissing) {
		t.Fatalf("err = %v, want ErrConfigurationMissing", err)
	}
}

func TestCalculateAndStore_OutstationUsesScheduledTime(t *testing.T) {
	cfg := newFakeConfig()
	cfg.outstation["sedan"] = OutstationFare{ID: "o1", BaseFare: 500, PerKmRate: 12, DailyKmLimit: 300, DriverAllowancePerDay: 250}
	started := fixedNow.Add(-30 * time.Hour)
	ledger := newFakeLedger(Trip{RideID: "ride-o", BookingType: BookingOutstation, VehicleType: "sedan", ScheduledTime: &started})
	svc := newTestService(cfg, ledger)

	b, err := svc.CalculateAndStore(context.Background(), CalculateCommand{RideID: "ride-o", DistanceKm: 120})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if b.Details.Days != 2 {
		t.Fatalf("days = %d, want 2", b.Details.Days)
	}
	assertMoney(t, "distance_fare", b.DistanceFare, 600*12)
	assertMoney(t, "driver_allowance", b.DriverAllowance, 500)
}

func TestCalculateAndStore_Airport(t *testing.T) {
	cfg := newFakeConfig()
	cfg.airport["sedan"] = AirportFare{ID: "a1", CityToAirport: 800, AirportToCity: 950}
	ledger := newFakeLedger(Trip{RideID: "ride-a", BookingType: BookingAirport, VehicleType: "sedan"})
	svc := newTestService(cfg, ledger)

	b, err := svc.CalculateAndStore(context.Background(), CalculateCommand{
		RideID: "ride-a", DistanceKm: 35, DurationMinutes: 70,
		Pickup: northOf(cityCenter, 32), Drop: northOf(cityCenter, 2),
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	assertMoney(t, "total_fare", b.TotalFare, 950)
}

func TestCalculateAndStore_Errors(t *testing.T) {
	ledger := newFakeLedger(
		Trip{RideID: "ride-1", BookingType: BookingRegular, VehicleType: "auto"},
		Trip{RideID: "ride-x", BookingType: "shuttle", VehicleType: "sedan"},
	)
	svc := newTestService(newFakeConfig(), ledger)
	ctx := context.Background()

	tests := []struct {
		name string
		cmd  CalculateCommand
		want error
	}{
		{"missing rate row", CalculateCommand{RideID: "ride-1", DistanceKm: 5}, ErrConfigurationMissing},
		{"unknown ride", CalculateCommand{RideID: "nope", DistanceKm: 5}, ErrRideNotFound},
		{"unsupported booking", CalculateCommand{RideID: "ride-x", DistanceKm: 5}, ErrUnsupportedBooking},
		{"negative distance", CalculateCommand{RideID: "ride-1", DistanceKm: -1}, ErrInvalidTrip},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CalculateAndStore(ctx, tc.cmd)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
	if len(ledger.breakdowns) != 0 {
		t.Fatalf("failed calculations stored %d rows", len(ledger.breakdowns))
	}
}

func TestCalculateAndStore_InvalidInputSkipsLookup(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(newFakeConfig(), ledger)

	_, err := svc.CalculateAndStore(context.Background(), CalculateCommand{RideID: "ride-1", DurationMinutes: -5})
	if !errors.Is(err, ErrInvalidTrip) {
		t.Fatalf("err = %v", err)
	}
	if ledger.tripReads != 0 {
		t.Fatalf("trip lookups = %d, want 0", ledger.tripReads)
	}
}

func TestEstimate_DoesNotPersist(t *testing.T) {
	cfg := newFakeConfig()
	cfg.matrices["regular/sedan"] = regularSedan()
	ledger := newFakeLedger()
	svc := newTestService(cfg, ledger)

	b, err := svc.Estimate(context.Background(), EstimateCommand{
		BookingType: BookingRegular, VehicleType: "sedan",
		Pickup: cityCenter, Drop: northOf(cityCenter, 10),
	})
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	assertMoney(t, "distance_fare", b.DistanceFare, 72)
	if b.DurationMinutes != b.DistanceKm*estimateMinutesPerKm {
		t.Fatalf("duration = %v for %v km", b.DurationMinutes, b.DistanceKm)
	}
	if len(ledger.breakdowns) != 0 {
		t.Fatal("estimate must not store a breakdown")
	}
}
