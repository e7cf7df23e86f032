// README: Notification sink backed by PostgreSQL (notifications + profiles).
package matching

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridehail/internal/types"
)

type NotificationStore struct {
	db *pgxpool.Pool
}

func NewNotificationStore(db *pgxpool.Pool) *NotificationStore {
	return &NotificationStore{db: db}
}

func (s *NotificationStore) CreateNotification(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO notifications (id, recipient_id, type, title, message, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(n.ID), string(n.RecipientID), n.Type, n.Title, n.Message, payload, n.CreatedAt,
	)
	return err
}

// CustomerContact returns the customer's name and phone. A customer without
// a profile yields an empty contact.
func (s *NotificationStore) CustomerContact(ctx context.Context, customerID types.ID) (CustomerContact, error) {
	var c CustomerContact
	err := s.db.QueryRow(ctx, `
		SELECT full_name, phone FROM profiles WHERE user_id = $1`, string(customerID),
	).Scan(&c.Name, &c.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return CustomerContact{}, nil
	}
	return c, err
}
