package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Subscriber mirrors the subscribers table. Name, Phone, and HowMet hold the
// stored envelope strings; decryption happens in the service layer, never
// here.
type Subscriber struct {
	ID        uuid.UUID
	Name      string
	Phone     string
	HowMet    sql.NullString
	PinCode   sql.NullString
	Active    bool
	CreatedAt time.Time
}

const subscriberColumns = `id, name, phone, how_met, pin_code, active, created_at`

func scanSubscriber(row interface{ Scan(...any) error }) (Subscriber, error) {
	var sub Subscriber
	err := row.Scan(&sub.ID, &sub.Name, &sub.Phone, &sub.HowMet, &sub.PinCode, &sub.Active, &sub.CreatedAt)
	return sub, err
}

func (s *Store) ListSubscribers(ctx context.Context, activeOnly bool) ([]Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers ORDER BY created_at`
	if activeOnly {
		query = `SELECT ` + subscriberColumns + ` FROM subscribers WHERE active ORDER BY created_at`
	}
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *Store) GetSubscriber(ctx context.Context, id uuid.UUID) (Subscriber, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE id = $1`, id)
	return scanSubscriber(row)
}

func (s *Store) GetSubscriberByPin(ctx context.Context, pinCode string) (Subscriber, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE pin_code = $1 AND active`, pinCode)
	return scanSubscriber(row)
}

func (s *Store) InsertSubscriber(ctx context.Context, sub Subscriber) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO subscribers (id, name, phone, how_met, pin_code, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sub.ID, sub.Name, sub.Phone, sub.HowMet, sub.PinCode, sub.Active, sub.CreatedAt)
	return err
}

// UpdateSubscriberFields replaces the stored envelopes for an existing row.
// The row is addressed by its stable id, not by ciphertext: envelopes are
// nondeterministic, so a crash between encrypt and write is re-driveable by
// simply encrypting and writing again.
func (s *Store) UpdateSubscriberFields(ctx context.Context, id uuid.UUID, name, phoneField string, howMet sql.NullString) (Subscriber, error) {
	row := s.DB.QueryRowContext(ctx,
		`UPDATE subscribers SET name = $2, phone = $3, how_met = $4
		 WHERE id = $1
		 RETURNING `+subscriberColumns,
		id, name, phoneField, howMet)
	return scanSubscriber(row)
}

func (s *Store) SetSubscriberActive(ctx context.Context, id uuid.UUID, active bool) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE subscribers SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) SetSubscriberPin(ctx context.Context, id uuid.UUID, pinCode string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE subscribers SET pin_code = $2 WHERE id = $1`, id, pinCode)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) DeleteSubscriber(ctx context.Context, id uuid.UUID) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM subscribers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
