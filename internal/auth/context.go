package auth

import (
	"context"
	"errors"
)

// Principal identifies the authenticated admin operator for a request.
type Principal struct {
	Name string
}

type contextKey int

const principalContextKey contextKey = 1

var ErrUnauthorized = errors.New("unauthorized")

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(Principal)
	return p, ok
}
