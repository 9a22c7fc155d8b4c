package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newRedisLimiter(t *testing.T, c *clock) *RedisLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	l := NewRedisLimiter(rdb)
	l.now = c.now
	return l
}

func newMemoryLimiter(c *clock) *MemoryLimiter {
	l := NewMemoryLimiter()
	l.now = c.now
	return l
}

func TestLimiters(t *testing.T) {
	const window = 15 * time.Minute

	impls := map[string]func(t *testing.T, c *clock) Limiter{
		"redis":  func(t *testing.T, c *clock) Limiter { return newRedisLimiter(t, c) },
		"memory": func(t *testing.T, c *clock) Limiter { return newMemoryLimiter(c) },
	}

	for name, build := range impls {
		t.Run(name+"/rejects after quota until window resets", func(t *testing.T) {
			c := &clock{t: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}
			l := build(t, c)
			ctx := context.Background()

			for i := 0; i < 3; i++ {
				res, err := l.Allow(ctx, "forgot:1.2.3.4", 3, window)
				require.NoError(t, err)
				assert.True(t, res.Allowed, "request %d", i+1)
				assert.Equal(t, 2-i, res.Remaining)
			}

			res, err := l.Allow(ctx, "forgot:1.2.3.4", 3, window)
			require.NoError(t, err)
			assert.False(t, res.Allowed)
			assert.Equal(t, 0, res.Remaining)
			assert.Equal(t, 3, res.Limit)
			assert.Equal(t, time.Date(2026, 1, 1, 10, 15, 0, 0, time.UTC), res.Reset.UTC())
			assert.Equal(t, 15*time.Minute, res.RetryAfter(c.now()))

			c.advance(10 * time.Minute)
			res, err = l.Allow(ctx, "forgot:1.2.3.4", 3, window)
			require.NoError(t, err)
			assert.False(t, res.Allowed, "still inside the window")

			c.advance(5 * time.Minute)
			res, err = l.Allow(ctx, "forgot:1.2.3.4", 3, window)
			require.NoError(t, err)
			assert.True(t, res.Allowed, "new window")
			assert.Equal(t, 2, res.Remaining)
		})

		t.Run(name+"/keys are independent", func(t *testing.T) {
			c := &clock{t: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}
			l := build(t, c)
			ctx := context.Background()

			res, err := l.Allow(ctx, "signup:a", 1, window)
			require.NoError(t, err)
			assert.True(t, res.Allowed)

			res, err = l.Allow(ctx, "signup:a", 1, window)
			require.NoError(t, err)
			assert.False(t, res.Allowed)

			res, err = l.Allow(ctx, "signup:b", 1, window)
			require.NoError(t, err)
			assert.True(t, res.Allowed)
		})
	}
}

func TestRedisLimiterSetsExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	l := NewRedisLimiter(rdb)
	_, err := l.Allow(context.Background(), "signup:x", 5, time.Minute)
	require.NoError(t, err)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Greater(t, mr.TTL(keys[0]), time.Duration(0))
}

func TestMemoryLimiterCleanup(t *testing.T) {
	c := &clock{t: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}
	l := newMemoryLimiter(c)

	_, _ = l.Allow(context.Background(), "k", 1, time.Minute)
	c.advance(2 * time.Minute)
	l.Cleanup()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.items)
}
