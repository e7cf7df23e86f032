// README: Pricing store backed by PostgreSQL (rate tables, zones, fare_breakdowns).
package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridehail/internal/geo"
	"ridehail/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// ActiveFareMatrix returns the most recently updated active row.
func (s *Store) ActiveFareMatrix(ctx context.Context, bookingType BookingType, vehicleType string) (FareMatrix, error) {
	var m FareMatrix
	err := s.db.QueryRow(ctx, `
		SELECT id, booking_type, vehicle_type, base_fare, per_km_rate,
		       base_km_included, surge_multiplier, platform_fee
		FROM fare_matrix
		WHERE booking_type = $1 AND vehicle_type = $2 AND is_active = TRUE
		ORDER BY updated_at DESC
		LIMIT 1`, string(bookingType), vehicleType,
	).Scan(&m.ID, &m.BookingType, &m.VehicleType, &m.BaseFare, &m.PerKmRate,
		&m.BaseKmIncluded, &m.SurgeMultiplier, &m.PlatformFee)
	if errors.Is(err, pgx.ErrNoRows) {
		return FareMatrix{}, fmt.Errorf("%w: fare_matrix %s/%s", ErrConfigurationMissing, bookingType, vehicleType)
	}
	return m, err
}

func (s *Store) ActiveRentalPackages(ctx context.Context, vehicleType string) ([]RentalFare, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, vehicle_type, duration_hours, km_included, base_fare,
		       extra_km_rate, is_popular, updated_at
		FROM rental_fares
		WHERE vehicle_type = $1 AND is_active = TRUE
		ORDER BY duration_hours`, vehicleType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RentalFare
	for rows.Next() {
		var p RentalFare
		if err := rows.Scan(&p.ID, &p.VehicleType, &p.DurationHours, &p.KmIncluded,
			&p.BaseFare, &p.ExtraKmRate, &p.IsPopular, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ActiveOutstationFare(ctx context.Context, vehicleType string) (OutstationFare, error) {
	var f OutstationFare
	err := s.db.QueryRow(ctx, `
		SELECT id, vehicle_type, base_fare, per_km_rate, daily_km_limit, driver_allowance_per_day
		FROM outstation_fares
		WHERE vehicle_type = $1 AND is_active = TRUE
		ORDER BY updated_at DESC
		LIMIT 1`, vehicleType,
	).Scan(&f.ID, &f.VehicleType, &f.BaseFare, &f.PerKmRate, &f.DailyKmLimit, &f.DriverAllowancePerDay)
	if errors.Is(err, pgx.ErrNoRows) {
		return OutstationFare{}, fmt.Errorf("%w: outstation_fares %s", ErrConfigurationMissing, vehicleType)
	}
	return f, err
}

func (s *Store) ActiveAirportFare(ctx context.Context, vehicleType string) (AirportFare, error) {
	var f AirportFare
	err := s.db.QueryRow(ctx, `
		SELECT id, vehicle_type, city_to_airport, airport_to_city
		FROM airport_fares
		WHERE vehicle_type = $1 AND is_active = TRUE
		ORDER BY updated_at DESC
		LIMIT 1`, vehicleType,
	).Scan(&f.ID, &f.VehicleType, &f.CityToAirport, &f.AirportToCity)
	if errors.Is(err, pgx.ErrNoRows) {
		return AirportFare{}, fmt.Errorf("%w: airport_fares %s", ErrConfigurationMissing, vehicleType)
	}
	return f, err
}

// ActiveZones lists active zones in a stable order so zone detection is
// deterministic when several match.
func (s *Store) ActiveZones(ctx context.Context) ([]geo.Zone, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, role, center_lat, center_lng, radius_km, is_active
		FROM zones
		WHERE is_active = TRUE
		ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []geo.Zone
	for rows.Next() {
		var z geo.Zone
		var id string
		if err := rows.Scan(&id, &z.Name, &z.Role, &z.Center.Lat, &z.Center.Lng, &z.RadiusKm, &z.IsActive); err != nil {
			return nil, err
		}
		z.ID = types.ID(id)
		out = append(out, z)
	}
	return out, rows.Err()
}

func (s *Store) Trip(ctx context.Context, rideID types.ID) (Trip, error) {
	t := Trip{RideID: rideID}
	err := s.db.QueryRow(ctx, `
		SELECT booking_type, vehicle_type, scheduled_time
		FROM rides
		WHERE id = $1`, string(rideID),
	).Scan(&t.BookingType, &t.VehicleType, &t.ScheduledTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return Trip{}, ErrRideNotFound
	}
	return t, err
}

// SaveBreakdown upserts the breakdown keyed by ride and copies the final fare
// onto the ride in one transaction. A recalculation replaces the earlier row
// but keeps its id and created_at.
func (s *Store) SaveBreakdown(ctx context.Context, b *FareBreakdown) error {
	details, err := json.Marshal(b.Details)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var id string
	var createdAt time.Time
	err = tx.QueryRow(ctx, `
		INSERT INTO fare_breakdowns (
			id, ride_id, booking_type, vehicle_type,
			base_fare, distance_fare, time_fare, surge_charges, deadhead_charges,
			platform_fee, gst_on_charges, gst_on_platform_fee, extra_km_charges,
			driver_allowance, total_fare, distance_km, duration_minutes, details
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (ride_id) DO UPDATE SET
			booking_type = EXCLUDED.booking_type,
			vehicle_type = EXCLUDED.vehicle_type,
			base_fare = EXCLUDED.base_fare,
			distance_fare = EXCLUDED.distance_fare,
			time_fare = EXCLUDED.time_fare,
			surge_charges = EXCLUDED.surge_charges,
			deadhead_charges = EXCLUDED.deadhead_charges,
			platform_fee = EXCLUDED.platform_fee,
			gst_on_charges = EXCLUDED.gst_on_charges,
			gst_on_platform_fee = EXCLUDED.gst_on_platform_fee,
			extra_km_charges = EXCLUDED.extra_km_charges,
			driver_allowance = EXCLUDED.driver_allowance,
			total_fare = EXCLUDED.total_fare,
			distance_km = EXCLUDED.distance_km,
			duration_minutes = EXCLUDED.duration_minutes,
			details = EXCLUDED.details,
			updated_at = NOW()
		RETURNING id, created_at`,
		string(b.ID), string(b.RideID), string(b.BookingType), b.VehicleType,
		b.BaseFare, b.DistanceFare, b.TimeFare, b.SurgeCharges, b.DeadheadCharges,
		b.PlatformFee, b.GSTOnCharges, b.GSTOnPlatformFee, b.ExtraKmCharges,
		b.DriverAllowance, b.TotalFare, b.DistanceKm, b.DurationMinutes, details,
	).Scan(&id, &createdAt)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE rides
		SET fare_amount = $1, distance_km = $2, duration_minutes = $3
		WHERE id = $4`,
		b.TotalFare, b.DistanceKm, b.DurationMinutes, string(b.RideID),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrRideNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	b.ID = types.ID(id)
	b.CreatedAt = createdAt
	return nil
}

func (s *Store) GetBreakdown(ctx context.Context, rideID types.ID) (*FareBreakdown, error) {
	var b FareBreakdown
	var id, ride string
	var details []byte
	err := s.db.QueryRow(ctx, `
		SELECT id, ride_id, booking_type, vehicle_type,
		       base_fare, distance_fare, time_fare, surge_charges, deadhead_charges,
		       platform_fee, gst_on_charges, gst_on_platform_fee, extra_km_charges,
		       driver_allowance, total_fare, distance_km, duration_minutes, details, created_at
		FROM fare_breakdowns
		WHERE ride_id = $1`, string(rideID),
	).Scan(&id, &ride, &b.BookingType, &b.VehicleType,
		&b.BaseFare, &b.DistanceFare, &b.TimeFare, &b.SurgeCharges, &b.DeadheadCharges,
		&b.PlatformFee, &b.GSTOnCharges, &b.GSTOnPlatformFee, &b.ExtraKmCharges,
		&b.DriverAllowance, &b.TotalFare, &b.DistanceKm, &b.DurationMinutes, &details, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBreakdownNotFound
	}
	if err != nil {
		return nil, err
	}
	b.ID = types.ID(id)
	b.RideID = types.ID(ride)
	if err := json.Unmarshal(details, &b.Details); err != nil {
		return nil, err
	}
	return &b, nil
}
