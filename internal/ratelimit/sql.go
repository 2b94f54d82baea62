package ratelimit

import (
	"context"
	"database/sql"
	"time"
)

// SQLStore keeps rate windows in the rate_windows table. Fallback for
// deployments without Redis: the PIN check stays limited either way.
//
// Read-then-write here is not serialized across instances. Contending
// callers on one key within the same microseconds cost at worst an
// off-by-one on the count, never an unlimited path.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Hit(ctx context.Context, key string, now time.Time, window time.Duration, max int) (Decision, error) {
	var (
		count int
		start time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT count, window_start FROM rate_windows WHERE key = $1`, key).
		Scan(&count, &start)
	switch {
	case err == sql.ErrNoRows:
		return s.reset(ctx, key, now, window, max)
	case err != nil:
		return Decision{}, err
	}

	if now.Sub(start) >= window {
		return s.reset(ctx, key, now, window, max)
	}
	if count >= max {
		return decide(count, start, now, window, max, false), nil
	}

	err = s.db.QueryRowContext(ctx,
		`UPDATE rate_windows SET count = count + 1 WHERE key = $1 RETURNING count`, key).
		Scan(&count)
	if err != nil {
		return Decision{}, err
	}
	return decide(count, start, now, window, max, true), nil
}

func (s *SQLStore) reset(ctx context.Context, key string, now time.Time, window time.Duration, max int) (Decision, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rate_windows (key, count, window_start) VALUES ($1, 1, $2)
		 ON CONFLICT (key) DO UPDATE SET count = 1, window_start = EXCLUDED.window_start`,
		key, now)
	if err != nil {
		return Decision{}, err
	}
	return decide(1, now, now, window, max, true), nil
}
