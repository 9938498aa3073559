package middleware

import (
	"net/http"
	"time"

	"github.com/openwager/betfeed/internal/domain"
)

// PlacementRateLimit returns middleware limiting wager placements per
// authenticated user. The window state lives in Redis, so the limit holds
// across replicas. Limiter errors fail open: slowing down placements is
// worse than briefly not limiting them.
func PlacementRateLimit(limiter domain.RateLimiter, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := UserID(r.Context())
			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}

			// The limiter namespaces keys itself; this is the key within
			// that namespace.
			allowed, err := limiter.Allow(r.Context(), "placement:"+userID, limit, window)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"too many placements, slow down"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
