package service

import (
	"context"
	"net/http"

	"textline/internal/auth"
	"textline/internal/logging"
)

// AuthService exchanges the operator password for a short-lived admin token.
type AuthService struct {
	operator   string
	salt       []byte
	verifier   []byte
	iterations int
	tokens     *auth.TokenManager
}

func NewAuthService(operator string, salt, verifier []byte, iterations int, tokens *auth.TokenManager) *AuthService {
	return &AuthService{
		operator:   operator,
		salt:       salt,
		verifier:   verifier,
		iterations: iterations,
		tokens:     tokens,
	}
}

// Login verifies the password and issues a token. The rejection carries no
// detail: wrong password and unknown operator look identical to the caller.
func (s *AuthService) Login(ctx context.Context, operator, password string) (token string, expiresInSeconds int, err error) {
	if operator != s.operator || !auth.VerifyPassword(password, s.salt, s.verifier, s.iterations) {
		logging.Audit(ctx, "admin_login", "fail")
		return "", 0, NewError(http.StatusUnauthorized, "unauthorized", "unauthorized")
	}
	token, expiresInSeconds, err = s.tokens.Issue(operator)
	if err != nil {
		return "", 0, err
	}
	logging.Audit(ctx, "admin_login", "ok")
	return token, expiresInSeconds, nil
}
