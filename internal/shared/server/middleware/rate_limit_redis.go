package middleware

import (
	"context"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"studyai-backend/internal/shared/telemetry"
)

// RedisLimiter counts requests in fixed windows shared by every instance.
// A window lasts long enough to refill a full burst, so the long-run rate
// matches the in-process bucket. Redis errors let the request through.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: "rate_limit:"}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, rule RateLimitRule) (bool, time.Duration) {
	if rule.unlimited() {
		return true, 0
	}
	window := redisWindow(rule)
	redisKey := l.prefix + key

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		telemetry.Warn("rate_limit.redis_unavailable", map[string]any{"error": err.Error()})
		return true, 0
	}
	if count == 1 {
		l.client.Expire(ctx, redisKey, window)
	}
	if count <= int64(rule.Burst) {
		return true, 0
	}

	ttl, err := l.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		// A lost EXPIRE would pin the key forever.
		l.client.Expire(ctx, redisKey, window)
		return false, window
	}
	return false, ttl
}

func redisWindow(rule RateLimitRule) time.Duration {
	seconds := math.Ceil(float64(rule.Burst) / rule.Rate)
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}
