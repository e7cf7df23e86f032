// README: Ride store backed by PostgreSQL. All transitions are conditional updates.
package order

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridehail/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const rideColumns = `
	id, customer_id, driver_id, status, status_version, booking_type, vehicle_type,
	pickup_lat, pickup_lng, pickup_address, dropoff_lat, dropoff_lng, dropoff_address,
	estimated_fare, fare_amount, distance_km, duration_minutes, pickup_otp,
	driver_status_pending, scheduled_time, created_at,
	accepted_at, arrived_at, started_at, completed_at, cancelled_at, cancel_reason`

func scanRide(row pgx.Row) (*Ride, error) {
	var r Ride
	var driverID *string
	err := row.Scan(
		&r.ID, &r.CustomerID, &driverID, &r.Status, &r.StatusVersion, &r.BookingType, &r.VehicleType,
		&r.Pickup.Lat, &r.Pickup.Lng, &r.PickupAddress, &r.Dropoff.Lat, &r.Dropoff.Lng, &r.DropoffAddress,
		&r.EstimatedFare, &r.FareAmount, &r.DistanceKm, &r.DurationMinutes, &r.PickupOTP,
		&r.DriverStatusPending, &r.ScheduledTime, &r.CreatedAt,
		&r.AcceptedAt, &r.ArrivedAt, &r.StartedAt, &r.CompletedAt, &r.CancelledAt, &r.CancelReason,
	)
	if err != nil {
		return nil, err
	}
	if driverID != nil {
		d := types.ID(*driverID)
		r.DriverID = &d
	}
	return &r, nil
}

func (s *Store) Create(ctx context.Context, r *Ride) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO rides (
			id, customer_id, status, status_version, booking_type, vehicle_type,
			pickup_lat, pickup_lng, pickup_address, dropoff_lat, dropoff_lng, dropoff_address,
			estimated_fare, pickup_otp, scheduled_time, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		string(r.ID), string(r.CustomerID), string(r.Status), r.StatusVersion,
		string(r.BookingType), r.VehicleType,
		r.Pickup.Lat, r.Pickup.Lng, r.PickupAddress,
		r.Dropoff.Lat, r.Dropoff.Lng, r.DropoffAddress,
		r.EstimatedFare, r.PickupOTP, r.ScheduledTime, r.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Ride, error) {
	r, err := scanRide(s.db.QueryRow(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// Accept assigns the driver iff the ride is still requested and unassigned and
// the driver holds no other active ride. It reports whether this call won.
func (s *Store) Accept(ctx context.Context, id, driverID types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE rides
		SET status = 'accepted',
		    driver_id = $1,
		    status_version = status_version + 1,
		    accepted_at = NOW()
		WHERE id = $2 AND status = 'requested' AND driver_id IS NULL
		  AND NOT EXISTS (
		      SELECT 1 FROM rides held
		      WHERE held.driver_id = $1
		        AND held.status IN ('accepted', 'driver_arrived', 'in_progress')
		  )`,
		string(driverID), string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateStatus moves the ride from one status to another iff nobody else has
// changed it since version was read.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, reason *string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE rides
		SET status = $1,
		    status_version = status_version + 1,
		    arrived_at = CASE WHEN $1 = 'driver_arrived' THEN NOW() ELSE arrived_at END,
		    started_at = CASE WHEN $1 = 'in_progress' THEN NOW() ELSE started_at END,
		    completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END,
		    cancelled_at = CASE WHEN $1 = 'cancelled' THEN NOW() ELSE cancelled_at END,
		    cancel_reason = COALESCE($2, cancel_reason)
		WHERE id = $3 AND status = $4 AND status_version = $5`,
		string(to), reason, string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) SetDriverStatusPending(ctx context.Context, id types.ID, pending bool) error {
	_, err := s.db.Exec(ctx, `UPDATE rides SET driver_status_pending = $1 WHERE id = $2`, pending, string(id))
	return err
}

// ListDriverStatusPending returns rides whose driver busy flip still has to
// be retried, oldest acceptance first.
func (s *Store) ListDriverStatusPending(ctx context.Context, limit int) ([]Ride, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+rideColumns+`
		FROM rides
		WHERE driver_status_pending = TRUE
		ORDER BY accepted_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ride_state_events (
			ride_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.RideID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		toStringPtr(e.ActorID),
		e.CreatedAt,
	)
	return err
}

func (s *Store) HasActiveByCustomer(ctx context.Context, customerID types.ID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM rides
			WHERE customer_id = $1
			  AND status IN ('requested','accepted','driver_arrived','in_progress')
		)`, string(customerID),
	).Scan(&exists)
	return exists, err
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
