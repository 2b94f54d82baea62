package service_test

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"textline/internal/envelope"
	"textline/internal/repository"
	"textline/internal/service"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCodec(t *testing.T) *envelope.Codec {
	t.Helper()
	key := make([]byte, envelope.KeySize)
	for i := range key {
		key[i] = byte(i * 3)
	}
	c, err := envelope.NewCodec(key)
	require.NoError(t, err)
	return c
}

func newService(t *testing.T) (*service.SubscriberService, *envelope.Codec, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	codec := testCodec(t)
	return service.NewSubscriberService(repository.NewStore(db), codec), codec, mock
}

// sealedAs matches any stored value that decrypts to want under codec.
type sealedAs struct {
	codec *envelope.Codec
	want  string
}

func (m sealedAs) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	return s != m.want && m.codec.Open(s) == m.want
}

func TestSubscriberService_Create_EncryptsBeforeWrite(t *testing.T) {
	svc, codec, mock := newService(t)

	mock.ExpectExec(`INSERT INTO subscribers`).
		WithArgs(
			sqlmock.AnyArg(),
			sealedAs{codec, "Jane Doe"},
			sealedAs{codec, "+16475551234"},
			sealedAs{codec, "met at the market"},
			nil,
			true,
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sub, err := svc.Create(context.Background(), " Jane Doe ", "(647) 555-1234", "met at the market")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", sub.Name)
	assert.Equal(t, "+16475551234", sub.Phone)
	assert.True(t, sub.Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriberService_Create_RejectsBadInput(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.Create(context.Background(), "", "+16475551234", "")
	svcErr, ok := err.(*service.Error)
	require.True(t, ok)
	assert.Equal(t, 400, svcErr.Status)

	_, err = svc.Create(context.Background(), "Jane", "not a number", "")
	svcErr, ok = err.(*service.Error)
	require.True(t, ok)
	assert.Equal(t, 400, svcErr.Status)
}

func sealedRow(t *testing.T, codec *envelope.Codec, id uuid.UUID, name, phoneNum string, active bool) []driver.Value {
	t.Helper()
	sealedName, err := codec.Seal(name)
	require.NoError(t, err)
	sealedPhone, err := codec.Seal(phoneNum)
	require.NoError(t, err)
	return []driver.Value{id, sealedName, sealedPhone, nil, nil, active, time.Now()}
}

func TestSubscriberService_MatchByPhone(t *testing.T) {
	svc, codec, mock := newService(t)

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	rows := sqlmock.NewRows([]string{"id", "name", "phone", "how_met", "pin_code", "active", "created_at"}).
		AddRow(sealedRow(t, codec, ids[0], "A", "+16475551234", true)...).
		AddRow(sealedRow(t, codec, ids[1], "B", "+4917612345", true)...).
		AddRow(sealedRow(t, codec, ids[2], "C", "+13065559999", true)...)
	mock.ExpectQuery(`SELECT .+ FROM subscribers ORDER BY created_at`).WillReturnRows(rows)

	match, err := svc.MatchByPhone(context.Background(), "+4917612345")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, ids[1], match.ID)
	assert.Equal(t, "B", match.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriberService_MatchByPhone_NoMatchIsNotAnError(t *testing.T) {
	svc, codec, mock := newService(t)

	rows := sqlmock.NewRows([]string{"id", "name", "phone", "how_met", "pin_code", "active", "created_at"}).
		AddRow(sealedRow(t, codec, uuid.New(), "A", "+16475551234", true)...)
	mock.ExpectQuery(`SELECT .+ FROM subscribers ORDER BY created_at`).WillReturnRows(rows)

	match, err := svc.MatchByPhone(context.Background(), "+10000000000")
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestSubscriberService_MatchByPhone_SkipsUndecryptableRows(t *testing.T) {
	svc, codec, mock := newService(t)

	id := uuid.New()
	sealedPhone, err := codec.Seal("+16475551234")
	require.NoError(t, err)
	rows := sqlmock.NewRows([]string{"id", "name", "phone", "how_met", "pin_code", "active", "created_at"}).
		AddRow(uuid.New(), "legacy name", "corrupted:aabb", nil, nil, true, time.Now()).
		AddRow(id, "sealed", sealedPhone, nil, nil, true, time.Now())
	mock.ExpectQuery(`SELECT .+ FROM subscribers ORDER BY created_at`).WillReturnRows(rows)

	match, err := svc.MatchByPhone(context.Background(), "+16475551234")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, id, match.ID)
}

func TestSubscriberService_AssignPin_RegeneratesOnConflict(t *testing.T) {
	svc, _, mock := newService(t)
	id := uuid.New()

	uniqueViolation := &pgconn.PgError{Code: "23505"}
	mock.ExpectExec(`UPDATE subscribers SET pin_code`).
		WithArgs(id, sqlmock.AnyArg()).
		WillReturnError(uniqueViolation)
	mock.ExpectExec(`UPDATE subscribers SET pin_code`).
		WithArgs(id, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	code, err := svc.AssignPin(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriberService_AssignPin_GivesUpAfterSecondConflict(t *testing.T) {
	svc, _, mock := newService(t)
	id := uuid.New()

	uniqueViolation := &pgconn.PgError{Code: "23505"}
	mock.ExpectExec(`UPDATE subscribers SET pin_code`).WillReturnError(uniqueViolation)
	mock.ExpectExec(`UPDATE subscribers SET pin_code`).WillReturnError(uniqueViolation)

	_, err := svc.AssignPin(context.Background(), id)
	svcErr, ok := err.(*service.Error)
	require.True(t, ok)
	assert.Equal(t, 409, svcErr.Status)
}
