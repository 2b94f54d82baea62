package ratelimit_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"textline/internal/ratelimit"

	"github.com/DATA-DOG/go-sqlmock"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func redisLimiter(t *testing.T, window time.Duration, max int) *ratelimit.Limiter {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return ratelimit.NewLimiter(ratelimit.NewRedisStore(rdb), window, max)
}

func TestRedisStore_WindowBoundary(t *testing.T) {
	l := redisLimiter(t, 5*time.Minute, 10)
	base := time.Unix(1_700_000_000, 0)
	now := base
	l.SetNow(func() time.Time { return now })
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		d, err := l.Check(ctx, "ip:1.2.3.4")
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("call %d throttled, want allowed", i)
		}
		if d.Count != i {
			t.Fatalf("call %d: count = %d", i, d.Count)
		}
	}

	d, err := l.Check(ctx, "ip:1.2.3.4")
	if err != nil {
		t.Fatalf("check 11: %v", err)
	}
	if d.Allowed {
		t.Fatalf("call 11 allowed, want throttled")
	}
	if d.Count != 10 {
		t.Fatalf("throttled call must not increment: count = %d", d.Count)
	}
	if d.RetryAfter <= 0 {
		t.Fatalf("throttled decision missing RetryAfter")
	}

	// 1ms past the window boundary: fresh window, counter back to 1.
	now = base.Add(5*time.Minute + time.Millisecond)
	d, err = l.Check(ctx, "ip:1.2.3.4")
	if err != nil {
		t.Fatalf("post-window check: %v", err)
	}
	if !d.Allowed || d.Count != 1 {
		t.Fatalf("post-window: allowed=%v count=%d, want allowed with count 1", d.Allowed, d.Count)
	}
}

func TestRedisStore_KeysAreIndependent(t *testing.T) {
	l := redisLimiter(t, time.Minute, 1)
	l.SetNow(func() time.Time { return time.Unix(1_700_000_000, 0) })
	ctx := context.Background()

	if d, _ := l.Check(ctx, "ip:1.1.1.1"); !d.Allowed {
		t.Fatalf("first key first call throttled")
	}
	if d, _ := l.Check(ctx, "ip:1.1.1.1"); d.Allowed {
		t.Fatalf("first key second call allowed")
	}
	if d, _ := l.Check(ctx, "ip:2.2.2.2"); !d.Allowed {
		t.Fatalf("second key blocked by first key's window")
	}
}

func TestSQLStore_FirstHitCreatesWindow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Unix(1_700_000_000, 0)
	mock.ExpectQuery(`SELECT count, window_start FROM rate_windows`).
		WithArgs("ip:1.2.3.4").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO rate_windows`).
		WithArgs("ip:1.2.3.4", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := ratelimit.NewSQLStore(db)
	d, err := s.Hit(context.Background(), "ip:1.2.3.4", now, 5*time.Minute, 10)
	if err != nil {
		t.Fatalf("Hit: %v", err)
	}
	if !d.Allowed || d.Count != 1 {
		t.Fatalf("allowed=%v count=%d, want fresh window", d.Allowed, d.Count)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLStore_FullWindowThrottlesWithoutWrite(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Unix(1_700_000_000, 0)
	start := now.Add(-time.Minute)
	mock.ExpectQuery(`SELECT count, window_start FROM rate_windows`).
		WithArgs("ip:1.2.3.4").
		WillReturnRows(sqlmock.NewRows([]string{"count", "window_start"}).AddRow(10, start))

	s := ratelimit.NewSQLStore(db)
	d, err := s.Hit(context.Background(), "ip:1.2.3.4", now, 5*time.Minute, 10)
	if err != nil {
		t.Fatalf("Hit: %v", err)
	}
	if d.Allowed {
		t.Fatalf("full window admitted a request")
	}
	if want := start.Add(5 * time.Minute).Sub(now); d.RetryAfter != want {
		t.Fatalf("RetryAfter = %v, want %v", d.RetryAfter, want)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLStore_StaleWindowResets(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Unix(1_700_000_000, 0)
	stale := now.Add(-6 * time.Minute)
	mock.ExpectQuery(`SELECT count, window_start FROM rate_windows`).
		WithArgs("ip:1.2.3.4").
		WillReturnRows(sqlmock.NewRows([]string{"count", "window_start"}).AddRow(10, stale))
	mock.ExpectExec(`INSERT INTO rate_windows`).
		WithArgs("ip:1.2.3.4", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := ratelimit.NewSQLStore(db)
	d, err := s.Hit(context.Background(), "ip:1.2.3.4", now, 5*time.Minute, 10)
	if err != nil {
		t.Fatalf("Hit: %v", err)
	}
	if !d.Allowed || d.Count != 1 {
		t.Fatalf("stale window not reset: allowed=%v count=%d", d.Allowed, d.Count)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLStore_ActiveWindowIncrements(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Unix(1_700_000_000, 0)
	start := now.Add(-time.Minute)
	mock.ExpectQuery(`SELECT count, window_start FROM rate_windows`).
		WithArgs("ip:1.2.3.4").
		WillReturnRows(sqlmock.NewRows([]string{"count", "window_start"}).AddRow(3, start))
	mock.ExpectQuery(`UPDATE rate_windows SET count = count \+ 1`).
		WithArgs("ip:1.2.3.4").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	s := ratelimit.NewSQLStore(db)
	d, err := s.Hit(context.Background(), "ip:1.2.3.4", now, 5*time.Minute, 10)
	if err != nil {
		t.Fatalf("Hit: %v", err)
	}
	if !d.Allowed || d.Count != 4 || d.Remaining != 6 {
		t.Fatalf("allowed=%v count=%d remaining=%d", d.Allowed, d.Count, d.Remaining)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
