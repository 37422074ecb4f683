package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/tourbook/booking-service/pkg/metrics"
)

// RateLimitStore counts hits per key inside a fixed window
type RateLimitStore interface {
	// Hit records one request and returns the count in the current window
	// and the time left until the window resets.
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	MaxRequests int           // Max requests per identifier
	Window      time.Duration // Fixed window length
}

// DefaultRateLimitConfig returns the default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 20,          // 20 requests
		Window:      time.Minute, // per minute
	}
}

// RateLimitService limits booking requests per client identifier
type RateLimitService struct {
	store   RateLimitStore
	config  RateLimitConfig
	metrics *metrics.Metrics
	logger  *logrus.Logger
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(store RateLimitStore, config RateLimitConfig, m *metrics.Metrics, logger *logrus.Logger) *RateLimitService {
	if config.MaxRequests <= 0 || config.Window <= 0 {
		config = DefaultRateLimitConfig()
	}
	return &RateLimitService{
		store:   store,
		config:  config,
		metrics: m,
		logger:  logger,
	}
}

// Allow records a request for identifier under scope and reports whether it
// is within the limit. When it is not, retryAfter is the time until the
// window resets. Store failures let the request through.
func (s *RateLimitService) Allow(ctx context.Context, scope, identifier string) (bool, time.Duration) {
	if identifier == "" {
		return true, 0
	}

	key := fmt.Sprintf("ratelimit:%s:%s", scope, identifier)
	count, resetIn, err := s.store.Hit(ctx, key, s.config.Window)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"scope": scope,
			"error": err.Error(),
		}).Warn("Rate limit check failed, allowing request")
		return true, 0
	}

	if count > int64(s.config.MaxRequests) {
		s.metrics.RateLimited.WithLabelValues(scope).Inc()
		s.logger.WithFields(logrus.Fields{
			"scope":       scope,
			"identifier":  identifier,
			"count":       count,
			"retry_after": resetIn.String(),
		}).Warn("Rate limit exceeded")
		return false, resetIn
	}
	return true, 0
}

// ============================================================================
// STORES
// ============================================================================

type rateWindow struct {
	count   int64
	resetAt time.Time
}

// MemoryRateLimitStore keeps windows in process memory
type MemoryRateLimitStore struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	now     func() time.Time
}

// NewMemoryRateLimitStore creates an empty in-memory store
func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	return &MemoryRateLimitStore{
		windows: make(map[string]*rateWindow),
		now:     time.Now,
	}
}

// Hit implements RateLimitStore
func (s *MemoryRateLimitStore) Hit(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &rateWindow{resetAt: now.Add(window)}
		s.windows[key] = w
	}
	w.count++
	return w.count, w.resetAt.Sub(now), nil
}

// CleanupExpired drops windows that have already reset
func (s *MemoryRateLimitStore) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

// RedisRateLimitStore shares windows across service instances
type RedisRateLimitStore struct {
	client *redis.Client
}

// NewRedisRateLimitStore creates a store on an open Redis client
func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client}
}

// Hit implements RateLimitStore with INCR and a TTL set on the first hit
func (s *RedisRateLimitStore) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	if count == 1 {
		if err := s.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("failed to set rate limit window: %w", err)
		}
		return count, window, nil
	}

	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read rate limit window: %w", err)
	}
	if ttl < 0 {
		// counter lost its expiry; start a new window
		if err := s.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("failed to set rate limit window: %w", err)
		}
		ttl = window
	}
	return count, ttl, nil
}
