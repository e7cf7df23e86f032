// README: Fare engine; dispatches on booking type to one pricing policy.
package pricing

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"ridehail/internal/geo"
	"ridehail/internal/logger"
	"ridehail/internal/types"
)

// estimateMinutesPerKm matches the dispatch ETA heuristic.
const estimateMinutesPerKm = 3

// ConfigProvider reads rate configuration. Rows are read fresh on every call
// so operators can change prices without a restart.
type ConfigProvider interface {
	ActiveFareMatrix(ctx context.Context, bookingType BookingType, vehicleType string) (FareMatrix, error)
	ActiveRentalPackages(ctx context.Context, vehicleType string) ([]RentalFare, error)
	ActiveOutstationFare(ctx context.Context, vehicleType string) (OutstationFare, error)
	ActiveAirportFare(ctx context.Context, vehicleType string) (AirportFare, error)
	ActiveZones(ctx context.Context) ([]geo.Zone, error)
}

type Ledger interface {
	Trip(ctx context.Context, rideID types.ID) (Trip, error)
	SaveBreakdown(ctx context.Context, b *FareBreakdown) error
	GetBreakdown(ctx context.Context, rideID types.ID) (*FareBreakdown, error)
}

type Service struct {
	config     ConfigProvider
	ledger     Ledger
	cityCenter types.Point
	log        logger.Logger
	now        func() time.Time
}

func NewService(config ConfigProvider, ledger Ledger, cityCenter types.Point, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		config:     config,
		ledger:     ledger,
		cityCenter: cityCenter,
		log:        log.With("module", "pricing"),
		now:        time.Now,
	}
}

// CalculateAndStore prices a finished trip and persists the breakdown. It is
// keyed on the ride, so calling it again replaces the earlier result.
func (s *Service) CalculateAndStore(ctx context.Context, cmd CalculateCommand) (*FareBreakdown, error) {
	if err := validateMeasurements(cmd.DistanceKm, cmd.DurationMinutes); err != nil {
		return nil, err
	}
	trip, err := s.ledger.Trip(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}

	b, err := s.calculate(ctx, trip, cmd.DistanceKm, cmd.DurationMinutes, cmd.Pickup, cmd.Drop)
	if err != nil {
		s.log.Error("fare calculation failed", err, "ride_id", cmd.RideID, "booking_type", trip.BookingType)
		return nil, err
	}
	b.ID = types.ID(uuid.NewString())
	b.RideID = cmd.RideID
	b.CreatedAt = s.now().UTC()

	if err := s.ledger.SaveBreakdown(ctx, &b); err != nil {
		return nil, err
	}
	s.log.Info("fare stored",
		"ride_id", b.RideID,
		"booking_type", b.BookingType,
		"total_fare", b.TotalFare,
	)
	return &b, nil
}

// Estimate prices a trip before it happens using the straight-line distance
// between the endpoints. Nothing is stored.
func (s *Service) Estimate(ctx context.Context, cmd EstimateCommand) (*FareBreakdown, error) {
	km := types.RoundTo(geo.DistanceKm(cmd.Pickup, cmd.Drop), 2)
	trip := Trip{BookingType: cmd.BookingType, VehicleType: cmd.VehicleType, ScheduledTime: cmd.ScheduledTime}
	b, err := s.calculate(ctx, trip, km, km*estimateMinutesPerKm, cmd.Pickup, cmd.Drop)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Service) Get(ctx context.Context, rideID types.ID) (*FareBreakdown, error) {
	return s.ledger.GetBreakdown(ctx, rideID)
}

func (s *Service) calculate(ctx context.Context, trip Trip, distanceKm, durationMinutes float64, pickup, drop types.Point) (FareBreakdown, error) {
	var (
		b   FareBreakdown
		err error
	)
	switch trip.BookingType {
	case BookingRegular:
		b, err = s.regular(ctx, trip, distanceKm, drop)
	case BookingRental:
		b, err = s.rental(ctx, trip, distanceKm, durationMinutes)
	case BookingOutstation:
		b, err = s.outstation(ctx, trip, distanceKm)
	case BookingAirport:
		b, err = s.airport(ctx, trip, pickup, drop)
	default:
		return FareBreakdown{}, fmt.Errorf("%w: %q", ErrUnsupportedBooking, trip.BookingType)
	}
	if err != nil {
		return FareBreakdown{}, err
	}
	b.BookingType = trip.BookingType
	b.VehicleType = trip.VehicleType
	b.DistanceKm = distanceKm
	b.DurationMinutes = durationMinutes
	return b, nil
}

func (s *Service) regular(ctx context.Context, trip Trip, distanceKm float64, drop types.Point) (FareBreakdown, error) {
	m, err := s.config.ActiveFareMatrix(ctx, BookingRegular, trip.VehicleType)
	if err != nil {
		return FareBreakdown{}, err
	}
	zones, err := s.config.ActiveZones(ctx)
	if err != nil {
		return FareBreakdown{}, err
	}
	return regularFare(m, distanceKm, computeDeadhead(zones, drop, m.PerKmRate)), nil
}

func (s *Service) rental(ctx context.Context, trip Trip, distanceKm, durationMinutes float64) (FareBreakdown, error) {
	pkgs, err := s.config.ActiveRentalPackages(ctx, trip.VehicleType)
	if err != nil {
		return FareBreakdown{}, err
	}
	hours := requestedRentalHours(durationMinutes)
	p, ok := selectRentalPackage(pkgs, hours)
	if !ok {
		return FareBreakdown{}, fmt.Errorf("%w: rental_fares %s", ErrConfigurationMissing, trip.VehicleType)
	}
	return rentalFare(p, distanceKm, hours), nil
}

func (s *Service) outstation(ctx context.Context, trip Trip, distanceKm float64) (FareBreakdown, error) {
	f, err := s.config.ActiveOutstationFare(ctx, trip.VehicleType)
	if err != nil {
		return FareBreakdown{}, err
	}
	now := s.now()
	start := now
	if trip.ScheduledTime != nil {
		start = *trip.ScheduledTime
	}
	return outstationFare(f, distanceKm, outstationDays(start, now)), nil
}

func (s *Service) airport(ctx context.Context, trip Trip, pickup, drop types.Point) (FareBreakdown, error) {
	f, err := s.config.ActiveAirportFare(ctx, trip.VehicleType)
	if err != nil {
		return FareBreakdown{}, err
	}
	return airportFare(f, pickup, drop, s.cityCenter), nil
}

func validateMeasurements(distanceKm, durationMinutes float64) error {
	for _, v := range []float64{distanceKm, durationMinutes} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: distance=%v duration=%v", ErrInvalidTrip, distanceKm, durationMinutes)
		}
	}
	return nil
}
