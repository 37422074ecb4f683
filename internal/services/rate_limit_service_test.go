package services

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/tourbook/booking-service/pkg/metrics"
)

type failingRateStore struct{}

func (failingRateStore) Hit(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.New("connection refused")
}

func newTestRateLimiter(store RateLimitStore, max int) (*RateLimitService, *metrics.Metrics) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	return NewRateLimitService(store, RateLimitConfig{MaxRequests: max, Window: time.Minute}, m, logger), m
}

func TestRateLimitService_Allow(t *testing.T) {
	t.Run("Blocks After Max Requests", func(t *testing.T) {
		store := NewMemoryRateLimitStore()
		limiter, m := newTestRateLimiter(store, 3)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			allowed, _ := limiter.Allow(ctx, "create_order", "10.0.0.1")
			assert.True(t, allowed, "request %d", i+1)
		}
		allowed, retryAfter := limiter.Allow(ctx, "create_order", "10.0.0.1")
		assert.False(t, allowed)
		assert.Greater(t, retryAfter, time.Duration(0))
		assert.LessOrEqual(t, retryAfter, time.Minute)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited.WithLabelValues("create_order")))
	})

	t.Run("Identifiers And Scopes Are Independent", func(t *testing.T) {
		limiter, _ := newTestRateLimiter(NewMemoryRateLimitStore(), 1)
		ctx := context.Background()

		allowed, _ := limiter.Allow(ctx, "create_order", "10.0.0.1")
		assert.True(t, allowed)
		allowed, _ = limiter.Allow(ctx, "create_order", "10.0.0.2")
		assert.True(t, allowed)
		allowed, _ = limiter.Allow(ctx, "complete_booking", "10.0.0.1")
		assert.True(t, allowed)
		allowed, _ = limiter.Allow(ctx, "create_order", "10.0.0.1")
		assert.False(t, allowed)
	})

	t.Run("Window Resets", func(t *testing.T) {
		store := NewMemoryRateLimitStore()
		now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
		store.now = func() time.Time { return now }
		limiter, _ := newTestRateLimiter(store, 1)
		ctx := context.Background()

		allowed, _ := limiter.Allow(ctx, "create_order", "10.0.0.1")
		assert.True(t, allowed)
		allowed, _ = limiter.Allow(ctx, "create_order", "10.0.0.1")
		assert.False(t, allowed)

		now = now.Add(time.Minute)
		allowed, _ = limiter.Allow(ctx, "create_order", "10.0.0.1")
		assert.True(t, allowed)
	})

	t.Run("Store Failure Allows Request", func(t *testing.T) {
		limiter, _ := newTestRateLimiter(failingRateStore{}, 1)
		allowed, _ := limiter.Allow(context.Background(), "create_order", "10.0.0.1")
		assert.True(t, allowed)
	})

	t.Run("Empty Identifier Is Not Limited", func(t *testing.T) {
		limiter, _ := newTestRateLimiter(NewMemoryRateLimitStore(), 1)
		for i := 0; i < 3; i++ {
			allowed, _ := limiter.Allow(context.Background(), "create_order", "")
			assert.True(t, allowed)
		}
	})
}

func TestMemoryRateLimitStore_CleanupExpired(t *testing.T) {
	store := NewMemoryRateLimitStore()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.Hit(context.Background(), "a", time.Minute)
	store.Hit(context.Background(), "b", time.Hour)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, store.CleanupExpired())

	count, _, _ := store.Hit(context.Background(), "b", time.Hour)
	assert.Equal(t, int64(2), count)
}
