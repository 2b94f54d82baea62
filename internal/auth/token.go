package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenManager issues and parses the short-lived HS256 tokens that gate the
// admin data proxy.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

type claims struct {
	Operator string `json:"op"`
	jwt.RegisteredClaims
}

func NewTokenManager(secret []byte, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: secret, ttl: ttl}
}

func (m *TokenManager) Issue(operator string) (token string, expiresInSeconds int, err error) {
	now := time.Now().UTC()
	c := claims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return "", 0, err
	}
	return signed, int(m.ttl.Seconds()), nil
}

func (m *TokenManager) Parse(token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrUnauthorized
	}
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		return Principal{}, ErrUnauthorized
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid || c.Operator == "" || c.ExpiresAt == nil {
		return Principal{}, ErrUnauthorized
	}
	return Principal{Name: c.Operator}, nil
}
