// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimitStore implements RateLimitStore backed by Redis so the
// limit is shared across replicas. It uses a fixed window counter: one
// INCR per request with the window TTL set on first increment.
//
// The store fails open: if Redis is unreachable the request is allowed
// and the error is counted, so a Redis outage degrades rate limiting
// rather than taking the API down with it.
type RedisRateLimitStore struct {
	client  *redis.Client
	metrics *Metrics
}

// NewRedisRateLimitStore creates a Redis-backed rate limit store.
func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client}
}

// WithMetrics attaches middleware metrics so fail-open events are counted.
func (s *RedisRateLimitStore) WithMetrics(m *Metrics) *RedisRateLimitStore {
	s.metrics = m
	return s
}

// Allow checks if a request from the given key should be allowed.
// Implements the RateLimitStore interface.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int, int) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// Set the TTL only when the key is new so the window is anchored to
	// the first request in it.
	pipe.ExpireNX(ctx, key, config.WindowDuration)
	ttl := pipe.TTL(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		if s.metrics != nil {
			s.metrics.IncRateLimitRedisErrors()
		}
		// Fail open with the full quota reported.
		return true, config.RequestsPerWindow, 0
	}

	count := int(incr.Val())
	if count <= config.RequestsPerWindow {
		return true, config.RequestsPerWindow - count, 0
	}

	retryAfter := int(ttl.Val().Seconds())
	if retryAfter <= 0 {
		retryAfter = 1
	}
	return false, 0, retryAfter
}
