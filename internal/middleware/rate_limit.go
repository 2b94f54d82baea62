package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"textline/internal/logging"
	"textline/internal/ratelimit"
)

type RateLimitOptions struct {
	TrustProxy bool
}

// RateLimitByIP applies a fixed-window limit keyed by client IP to the
// wrapped handler. A throttled request gets a 429 with Retry-After; that
// outcome is a first-class signal, distinct from the 401s the auth
// middleware produces.
//
// If the limiter's store errors (Redis blip, DB outage), the request is
// allowed through: failing open costs a few extra attempts, failing closed
// locks everyone out.
func RateLimitByIP(limiter *ratelimit.Limiter, opt RateLimitOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			ip := ClientIP(r, opt.TrustProxy)
			if ip == "" {
				// Cannot identify; fail open to avoid accidental lockouts.
				next.ServeHTTP(w, r)
				return
			}

			d, err := limiter.Check(r.Context(), "ip:"+ip)
			if err != nil {
				slog.Warn("rate limit store error; allowing request", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Max()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

			if !d.Allowed {
				retryAfter := int(math.Ceil(d.RetryAfter.Seconds()))
				if retryAfter <= 0 {
					retryAfter = int(limiter.Window().Seconds())
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				logging.Audit(r.Context(), "rate_limited", "fail", slog.String("route", r.URL.Path))
				writeRateLimited(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeRateLimited(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    "rate_limited",
		"message": "too many requests",
	})
}
