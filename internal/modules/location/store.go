// README: Location store backed by PostgreSQL (drivers + location_samples).
package location

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

// ListDispatchable returns drivers that are online and verified.
func (s *Store) ListDispatchable(ctx context.Context) ([]Driver, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, status, is_verified, vehicle_type
		FROM drivers
		WHERE status = 'online' AND is_verified = TRUE`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Driver
	for rows.Next() {
		var d Driver
		if err := rows.Scan(&d.ID, &d.UserID, &d.Status, &d.IsVerified, &d.VehicleType); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Driver, error) {
	return s.getBy(ctx, "id", string(id))
}

func (s *Store) GetByUser(ctx context.Context, userID types.ID) (*Driver, error) {
	return s.getBy(ctx, "user_id", string(userID))
}

func (s *Store) getBy(ctx context.Context, column, value string) (*Driver, error) {
	var d Driver
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, status, is_verified, vehicle_type
		FROM drivers
		WHERE `+column+` = $1`, value,
	).Scan(&d.ID, &d.UserID, &d.Status, &d.IsVerified, &d.VehicleType)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDriverNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// UpdateStatus sets the driver's status unless the driver is suspended.
// It reports whether a row changed.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, to DriverStatus) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status <> 'suspended'`,
		string(to), string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetAvailability moves the driver between online and offline. Busy and
// suspended drivers are left alone; it reports whether a row changed.
func (s *Store) SetAvailability(ctx context.Context, id types.ID, to DriverStatus) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status IN ('online', 'offline')`,
		string(to), string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// DeviceToken returns the push token registered for a user, or "" if none.
func (s *Store) DeviceToken(ctx context.Context, userID types.ID) (string, error) {
	var token string
	err := s.db.QueryRow(ctx, `SELECT device_token FROM profiles WHERE user_id = $1`, string(userID)).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return token, err
}

// LatestSamples returns the most recent sample per owner. Owners without any
// sample are absent from the map.
func (s *Store) LatestSamples(ctx context.Context, ownerIDs []types.ID) (map[types.ID]Sample, error) {
	out := make(map[types.ID]Sample, len(ownerIDs))
	if len(ownerIDs) == 0 {
		return out, nil
	}
	ids := make([]string, len(ownerIDs))
	for i, id := range ownerIDs {
		ids[i] = string(id)
	}

	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT ON (owner_id) owner_id, lat, lng, heading, speed, accuracy, captured_at
		FROM location_samples
		WHERE owner_id = ANY($1)
		ORDER BY owner_id, captured_at DESC`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var smp Sample
		if err := rows.Scan(
			&smp.OwnerID, &smp.Position.Lat, &smp.Position.Lng,
			&smp.Heading, &smp.Speed, &smp.Accuracy, &smp.CapturedAt,
		); err != nil {
			return nil, err
		}
		out[smp.OwnerID] = smp
	}
	return out, rows.Err()
}

func (s *Store) AppendSample(ctx context.Context, smp Sample) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO location_samples (owner_id, lat, lng, heading, speed, accuracy, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(smp.OwnerID), smp.Position.Lat, smp.Position.Lng,
		smp.Heading, smp.Speed, smp.Accuracy, smp.CapturedAt,
	)
	return err
}
