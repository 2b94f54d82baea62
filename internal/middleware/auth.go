package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"textline/internal/auth"
)

// RequireAdmin gates the admin data proxy behind a bearer token issued by
// the login endpoint. Every rejection is the same generic 401; the reason
// only goes to the server log.
func RequireAdmin(tokens *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokens == nil {
				logUnauthorized(r, "token_manager_missing", nil)
				writeUnauthorized(w)
				return
			}

			authz := r.Header.Get("Authorization")
			if authz == "" {
				logUnauthorized(r, "missing_header", nil)
				writeUnauthorized(w)
				return
			}
			if !strings.HasPrefix(authz, "Bearer ") {
				logUnauthorized(r, "invalid_auth_header", nil)
				writeUnauthorized(w)
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
			if token == "" {
				logUnauthorized(r, "empty_token", nil)
				writeUnauthorized(w)
				return
			}

			p, err := tokens.Parse(token)
			if err != nil {
				logUnauthorized(r, "token_parse_failed", err)
				writeUnauthorized(w)
				return
			}

			r = r.WithContext(auth.WithPrincipal(r.Context(), p))
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    "unauthorized",
		"message": "unauthorized",
	})
}

func logUnauthorized(r *http.Request, reason string, err error) {
	attrs := []any{
		slog.String("reason", reason),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		slog.String("remote", r.RemoteAddr),
	}
	if ua := r.UserAgent(); ua != "" {
		attrs = append(attrs, slog.String("user_agent", ua))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	slog.Warn("unauthorized request", attrs...)
}
