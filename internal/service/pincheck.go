package service

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"textline/internal/logging"
	"textline/internal/pin"
	"textline/internal/repository"
)

// PinCheckService verifies a presented PIN against the active subscriber
// set. Rate limiting happens in the route middleware before this runs; a
// request that reaches here has already passed its window.
type PinCheckService struct {
	store *repository.Store
	subs  *SubscriberService
}

func NewPinCheckService(store *repository.Store, subs *SubscriberService) *PinCheckService {
	return &PinCheckService{store: store, subs: subs}
}

// Check returns the subscriber behind a PIN. The rejection for a malformed
// code and for an unknown code are distinct (400 vs 404), but neither says
// whether any nearby code exists; PIN lookup is exact-match on the clear
// column.
func (s *PinCheckService) Check(ctx context.Context, code string) (Subscriber, error) {
	if s.store == nil {
		return Subscriber{}, NewError(http.StatusServiceUnavailable, "service_unavailable", "database not configured")
	}
	if !pin.Valid(code) {
		return Subscriber{}, NewError(http.StatusBadRequest, "invalid_request", "pin must be 6 characters, 0-9 or A-Z")
	}
	rec, err := s.store.GetSubscriberByPin(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logging.Audit(ctx, "pin_check", "fail")
			return Subscriber{}, NewError(http.StatusNotFound, "not_found", "pin not recognized")
		}
		return Subscriber{}, err
	}
	logging.Audit(ctx, "pin_check", "ok")
	return s.subs.decode(rec), nil
}
