package middleware

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/coldreach/coldreach/internal/ratelimit"
)

// RateLimit rate-limits requests per client using the provided Limiter.
// Authenticated requests are keyed by their bearer token so one user behind a
// NAT cannot starve the rest; anonymous requests fall back to the remote IP.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := BearerToken(r)
			if key == "" {
				ip, _, err := net.SplitHostPort(r.RemoteAddr)
				if err != nil {
					ip = r.RemoteAddr
				}
				key = ip
			}

			if !limiter.Allow(key) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "rate limit exceeded",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
