package middleware

import (
	"net/http"
	"os"
	"strings"
)

// CORS adds Cross-Origin Resource Sharing headers with exact origin
// matching, for the admin page served from a different origin. Allowed
// origins come from ALLOWED_ORIGINS (comma-separated); the default covers
// local development only.
func CORS() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if isAllowedOrigin(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}

			if r.Method == http.MethodOptions && origin != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	allowed := []string{
		"http://localhost:3000",
		"http://127.0.0.1:3000",
	}
	if custom := os.Getenv("ALLOWED_ORIGINS"); custom != "" {
		allowed = strings.Split(custom, ",")
	}
	for _, a := range allowed {
		// Exact match only; prefix matching invites bypasses like
		// localhost:3000.attacker.com.
		if strings.TrimSpace(a) == origin {
			return true
		}
	}
	return false
}
