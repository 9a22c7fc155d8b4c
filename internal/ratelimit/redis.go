package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter keeps one counter per caller and window in Redis so every
// replica shares the same quota.
type RedisLimiter struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(rdb *redis.Client) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, prefix: "ratelimit:", now: time.Now}
}

// Allow increments the caller's counter for the current window.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	now := l.now()
	reset := windowStart(now, window).Add(window)
	redisKey := fmt.Sprintf("%s%s:%d", l.prefix, key, reset.UnixMilli())

	var incr *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.PExpire(ctx, redisKey, reset.Sub(now))
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit incr %s: %w", key, err)
	}
	return result(incr.Val(), limit, reset), nil
}
