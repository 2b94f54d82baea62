package service

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"textline/internal/envelope"
	"textline/internal/phone"
	"textline/internal/pin"
	"textline/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Subscriber is the decrypted view handed to handlers and the inbound flow.
type Subscriber struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	HowMet    string    `json:"howMet,omitempty"`
	PinCode   string    `json:"pinCode,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// SubscriberService owns every read and write of subscriber PII. Writes pass
// through the envelope codec before the repository sees them; reads pass
// through decode before anything human-facing sees them.
type SubscriberService struct {
	store *repository.Store
	codec *envelope.Codec
}

func NewSubscriberService(store *repository.Store, codec *envelope.Codec) *SubscriberService {
	return &SubscriberService{store: store, codec: codec}
}

func (s *SubscriberService) decode(rec repository.Subscriber) Subscriber {
	sub := Subscriber{
		ID:        rec.ID,
		Name:      s.codec.Open(rec.Name),
		Phone:     s.codec.Open(rec.Phone),
		Active:    rec.Active,
		CreatedAt: rec.CreatedAt,
	}
	if rec.HowMet.Valid {
		sub.HowMet = s.codec.Open(rec.HowMet.String)
	}
	if rec.PinCode.Valid {
		sub.PinCode = rec.PinCode.String
	}
	return sub
}

func (s *SubscriberService) List(ctx context.Context, activeOnly bool) ([]Subscriber, error) {
	if s.store == nil {
		return nil, NewError(http.StatusServiceUnavailable, "service_unavailable", "database not configured")
	}
	recs, err := s.store.ListSubscribers(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	subs := make([]Subscriber, len(recs))
	for i, rec := range recs {
		subs[i] = s.decode(rec)
	}
	return subs, nil
}

func (s *SubscriberService) Get(ctx context.Context, id uuid.UUID) (Subscriber, error) {
	if s.store == nil {
		return Subscriber{}, NewError(http.StatusServiceUnavailable, "service_unavailable", "database not configured")
	}
	rec, err := s.store.GetSubscriber(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Subscriber{}, NewError(http.StatusNotFound, "not_found", "subscriber not found")
		}
		return Subscriber{}, err
	}
	return s.decode(rec), nil
}

// Create validates, normalizes, encrypts, and inserts a new subscriber.
// The row id is generated here so the encrypt-then-insert sequence is
// re-driveable after a crash: retrying produces a new row attempt keyed by
// id, never a duplicate keyed by ciphertext.
func (s *SubscriberService) Create(ctx context.Context, name, rawPhone, howMet string) (Subscriber, error) {
	if s.store == nil {
		return Subscriber{}, NewError(http.StatusServiceUnavailable, "service_unavailable", "database not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Subscriber{}, NewError(http.StatusBadRequest, "invalid_request", "name required")
	}
	normalized, err := phone.NormalizeE164(rawPhone)
	if err != nil {
		return Subscriber{}, NewError(http.StatusBadRequest, "invalid_request", "phone number is not valid")
	}

	rec := repository.Subscriber{
		ID:        uuid.New(),
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if rec.Name, err = s.codec.Seal(name); err != nil {
		return Subscriber{}, err
	}
	if rec.Phone, err = s.codec.Seal(normalized); err != nil {
		return Subscriber{}, err
	}
	if howMet = strings.TrimSpace(howMet); howMet != "" {
		sealed, err := s.codec.Seal(howMet)
		if err != nil {
			return Subscriber{}, err
		}
		rec.HowMet = sql.NullString{String: sealed, Valid: true}
	}

	if err := s.store.InsertSubscriber(ctx, rec); err != nil {
		return Subscriber{}, err
	}
	return s.decode(rec), nil
}

// Update re-encrypts and rewrites the PII fields of an existing subscriber.
// Unchanged fields are re-sealed too; each write produces fresh envelopes.
func (s *SubscriberService) Update(ctx context.Context, id uuid.UUID, name, rawPhone, howMet *string) (Subscriber, error) {
	if s.store == nil {
		return Subscriber{}, NewError(http.StatusServiceUnavailable, "service_unavailable", "database not configured")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return Subscriber{}, err
	}

	newName := current.Name
	if name != nil {
		newName = strings.TrimSpace(*name)
		if newName == "" {
			return Subscriber{}, NewError(http.StatusBadRequest, "invalid_request", "name required")
		}
	}
	newPhone := current.Phone
	if rawPhone != nil {
		newPhone, err = phone.NormalizeE164(*rawPhone)
		if err != nil {
			return Subscriber{}, NewError(http.StatusBadRequest, "invalid_request", "phone number is not valid")
		}
	}
	newHowMet := current.HowMet
	if howMet != nil {
		newHowMet = strings.TrimSpace(*howMet)
	}

	sealedName, err := s.codec.Seal(newName)
	if err != nil {
		return Subscriber{}, err
	}
	sealedPhone, err := s.codec.Seal(newPhone)
	if err != nil {
		return Subscriber{}, err
	}
	var sealedHowMet sql.NullString
	if newHowMet != "" {
		sealed, err := s.codec.Seal(newHowMet)
		if err != nil {
			return Subscriber{}, err
		}
		sealedHowMet = sql.NullString{String: sealed, Valid: true}
	}

	rec, err := s.store.UpdateSubscriberFields(ctx, id, sealedName, sealedPhone, sealedHowMet)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Subscriber{}, NewError(http.StatusNotFound, "not_found", "subscriber not found")
		}
		return Subscriber{}, err
	}
	return s.decode(rec), nil
}

func (s *SubscriberService) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	if s.store == nil {
		return NewError(http.StatusServiceUnavailable, "service_unavailable", "database not configured")
	}
	if err := s.store.SetSubscriberActive(ctx, id, active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NewError(http.StatusNotFound, "not_found", "subscriber not found")
		}
		return err
	}
	return nil
}

func (s *SubscriberService) Delete(ctx context.Context, id uuid.UUID) error {
	if s.store == nil {
		return NewError(http.StatusServiceUnavailable, "service_unavailable", "database not configured")
	}
	if err := s.store.DeleteSubscriber(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NewError(http.StatusNotFound, "not_found", "subscriber not found")
		}
		return err
	}
	return nil
}

// MatchByPhone finds the subscriber whose decrypted phone equals target.
//
// Ciphertext is nondeterministic, so the store cannot answer this with an
// index; candidates are scanned and decrypted one by one. That is O(n) per
// lookup and fine for a list measured in hundreds. Past a few thousand rows
// this needs a keyed lookup tag next to the envelope; do not grow the list
// past that without one. target must already be E.164-normalized.
//
// A nil result with nil error means no match, which is a valid outcome
// (e.g. a STOP from an unknown number), not a failure.
func (s *SubscriberService) MatchByPhone(ctx context.Context, target string) (*Subscriber, error) {
	if s.store == nil {
		return nil, NewError(http.StatusServiceUnavailable, "service_unavailable", "database not configured")
	}
	if target == "" {
		return nil, nil
	}
	recs, err := s.store.ListSubscribers(ctx, false)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		if s.codec.Open(rec.Phone) == target {
			sub := s.decode(rec)
			return &sub, nil
		}
	}
	return nil, nil
}

// AssignPin draws a fresh PIN for a subscriber. On a unique-index collision
// with another active subscriber's PIN it regenerates once; a second
// collision surfaces as a conflict for the operator to retry.
func (s *SubscriberService) AssignPin(ctx context.Context, id uuid.UUID) (string, error) {
	if s.store == nil {
		return "", NewError(http.StatusServiceUnavailable, "service_unavailable", "database not configured")
	}
	for attempt := 0; attempt < 2; attempt++ {
		code, err := pin.Generate()
		if err != nil {
			return "", err
		}
		err = s.store.SetSubscriberPin(ctx, id, code)
		if err == nil {
			return code, nil
		}
		if errors.Is(err, sql.ErrNoRows) {
			return "", NewError(http.StatusNotFound, "not_found", "subscriber not found")
		}
		if !isUniqueViolation(err) {
			return "", err
		}
	}
	return "", NewError(http.StatusConflict, "pin_conflict", "could not assign a unique pin, retry")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
