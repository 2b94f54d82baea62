package service_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"textline/internal/auth"
	"textline/internal/repository"
	"textline/internal/service"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPinCheck(t *testing.T) (*service.PinCheckService, sqlmock.Sqlmock, *service.SubscriberService) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := repository.NewStore(db)
	subs := service.NewSubscriberService(store, testCodec(t))
	return service.NewPinCheckService(store, subs), mock, subs
}

func TestPinCheck_KnownPin(t *testing.T) {
	svc, mock, _ := newPinCheck(t)
	codec := testCodec(t)

	id := uuid.New()
	sealedName, err := codec.Seal("Jane")
	require.NoError(t, err)
	sealedPhone, err := codec.Seal("+16475551234")
	require.NoError(t, err)
	rows := sqlmock.NewRows([]string{"id", "name", "phone", "how_met", "pin_code", "active", "created_at"}).
		AddRow(id, sealedName, sealedPhone, nil, "0A9Z3K", true, time.Now())
	mock.ExpectQuery(`SELECT .+ FROM subscribers WHERE pin_code`).
		WithArgs("0A9Z3K").
		WillReturnRows(rows)

	sub, err := svc.Check(context.Background(), "0A9Z3K")
	require.NoError(t, err)
	assert.Equal(t, "Jane", sub.Name)
	assert.Equal(t, id, sub.ID)
}

func TestPinCheck_UnknownPinIs404(t *testing.T) {
	svc, mock, _ := newPinCheck(t)

	mock.ExpectQuery(`SELECT .+ FROM subscribers WHERE pin_code`).
		WithArgs("ZZZZZZ").
		WillReturnError(sql.ErrNoRows)

	_, err := svc.Check(context.Background(), "ZZZZZZ")
	svcErr, ok := err.(*service.Error)
	require.True(t, ok)
	assert.Equal(t, 404, svcErr.Status)
}

func TestPinCheck_MalformedPinIs400WithoutLookup(t *testing.T) {
	svc, mock, _ := newPinCheck(t)

	for _, code := range []string{"", "abc", "abcdef", "1234567"} {
		_, err := svc.Check(context.Background(), code)
		svcErr, ok := err.(*service.Error)
		require.True(t, ok, "code %q", code)
		assert.Equal(t, 400, svcErr.Status, "code %q", code)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthService_Login(t *testing.T) {
	salt := []byte("0123456789abcdef")
	iterations := 1000
	verifier := auth.DeriveVerifier("hunter22hunter22", salt, iterations)
	tokens := auth.NewTokenManager([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	svc := service.NewAuthService("admin", salt, verifier, iterations, tokens)

	token, expiresIn, err := svc.Login(context.Background(), "admin", "hunter22hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, 3600, expiresIn)

	p, err := tokens.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", p.Name)

	_, _, err = svc.Login(context.Background(), "admin", "wrong")
	svcErr, ok := err.(*service.Error)
	require.True(t, ok)
	assert.Equal(t, 401, svcErr.Status)

	_, _, err = svc.Login(context.Background(), "root", "hunter22hunter22")
	require.Error(t, err)
}
