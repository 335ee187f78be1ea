package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/auditflow/auditflow/internal/logger"
	"github.com/go-redis/redis/v8"
)

// Decision is the outcome of one rate limit check
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// counterStore is the subset of the Redis client the limiter needs
type counterStore interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// RateLimiter counts requests per key in fixed windows
type RateLimiter struct {
	store  counterStore
	limit  int
	window time.Duration
	prefix string
	log    logger.Logger
}

// NewRateLimiter creates a fixed-window limiter allowing limit requests per window
func NewRateLimiter(client counterStore, limit int, window time.Duration, log logger.Logger) *RateLimiter {
	if log == nil {
		log = logger.NewNop()
	}
	return &RateLimiter{
		store:  client,
		limit:  limit,
		window: window,
		prefix: "ratelimit:",
		log:    log,
	}
}

// Allow counts one request for key. The window starts with the first request.
func (l *RateLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := l.prefix + key

	count, err := l.store.Incr(ctx, redisKey).Result()
	if err != nil {
		return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit}, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	ttl, err := l.store.TTL(ctx, redisKey).Result()
	if err != nil {
		return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit}, fmt.Errorf("failed to read rate limit window: %w", err)
	}
	// first hit, or a key that lost its expiry
	if count == 1 || ttl < 0 {
		if err := l.store.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit}, fmt.Errorf("failed to set rate limit window: %w", err)
		}
		ttl = l.window
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	decision := Decision{
		Allowed:   int(count) <= l.limit,
		Limit:     l.limit,
		Remaining: remaining,
	}
	if !decision.Allowed {
		decision.RetryAfter = ttl
		l.log.Warn(ctx, "rate limit exceeded", map[string]interface{}{
			"key":   key,
			"count": count,
			"limit": l.limit,
		})
	}
	return decision, nil
}

// NoopRateLimiter allows every request
type NoopRateLimiter struct{}

// Allow always allows
func (NoopRateLimiter) Allow(context.Context, string) (Decision, error) {
	return Decision{Allowed: true}, nil
}
