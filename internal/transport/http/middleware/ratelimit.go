// Package middleware provides HTTP middleware functions.
package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vidfetch/vidfetch/internal/domain"
	"github.com/vidfetch/vidfetch/internal/ratelimit"
)

// ClientID derives the rate-limiting key for a request. Proxy headers
// are tried in order; a request carrying none of them lands in the
// shared "unknown" bucket, which coarsely throttles unidentifiable
// clients as a group.
func ClientID(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
		if first != "" {
			return first
		}
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	return "unknown"
}

// RateLimit enforces the per-client admission bound. Denied requests
// get a 429 with the remaining quota, the window reset time in epoch
// milliseconds, and a Retry-After header in seconds.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := ClientID(r)

			if !limiter.Admit(clientID) {
				remaining := limiter.Remaining(clientID)
				resetAt := limiter.ResetAt(clientID)

				retryAfter := int(time.Until(resetAt).Seconds()) + 1
				if retryAfter < 1 {
					retryAfter = 1
				}
				resetMillis := resetAt.UnixMilli()

				slog.Warn("rate limit exceeded",
					"client", clientID,
					"path", r.URL.Path,
				)

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(&domain.ErrorResponse{
					Error:             domain.ErrRateLimited.Error(),
					RemainingRequests: &remaining,
					ResetTime:         &resetMillis,
				})
				return
			}

			remaining := limiter.Remaining(clientID)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			next.ServeHTTP(w, r)
		})
	}
}
