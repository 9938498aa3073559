package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fixedLimiter struct {
	allowed bool
	err     error
	lastKey string
}

func (f *fixedLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	f.lastKey = key
	return f.allowed, f.err
}

func placeThrough(limiter *fixedLimiter, userID string) *httptest.ResponseRecorder {
	h := PlacementRateLimit(limiter, 30, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/bets/b1/placement", nil)
	if userID != "" {
		req = req.WithContext(WithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPlacementRateLimitAllows(t *testing.T) {
	limiter := &fixedLimiter{allowed: true}
	rec := placeThrough(limiter, "user-1")

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "placement:user-1", limiter.lastKey)
}

func TestPlacementRateLimitBlocks(t *testing.T) {
	limiter := &fixedLimiter{allowed: false}
	rec := placeThrough(limiter, "user-1")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestPlacementRateLimitFailsOpen(t *testing.T) {
	limiter := &fixedLimiter{err: errors.New("redis down")}
	rec := placeThrough(limiter, "user-1")

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestPlacementRateLimitSkipsUnauthenticated(t *testing.T) {
	limiter := &fixedLimiter{}
	rec := placeThrough(limiter, "")

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, limiter.lastKey)
}
