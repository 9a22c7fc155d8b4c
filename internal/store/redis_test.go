package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient(t *testing.T) {
	ctx := context.Background()

	t.Run("connects to selected db", func(t *testing.T) {
		mr := miniredis.RunT(t)

		rdb, err := NewRedisClient(ctx, RedisOptions{Addr: mr.Addr(), DB: 2})
		require.NoError(t, err)
		t.Cleanup(func() { rdb.Close() })

		require.NoError(t, rdb.Set(ctx, "k", "v", 0).Err())
		assert.True(t, mr.DB(2).Exists("k"))
		assert.False(t, mr.DB(0).Exists("k"))
	})

	t.Run("password auth", func(t *testing.T) {
		mr := miniredis.RunT(t)
		mr.RequireAuth("s3cret")

		_, err := NewRedisClient(ctx, RedisOptions{Addr: mr.Addr(), Password: "wrong"})
		require.Error(t, err)

		rdb, err := NewRedisClient(ctx, RedisOptions{Addr: mr.Addr(), Password: "s3cret"})
		require.NoError(t, err)
		rdb.Close()
	})

	t.Run("unreachable server", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		_, err := NewRedisClient(ctx, RedisOptions{Addr: addr, DialTimeout: 200 * time.Millisecond})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis ping "+addr)
	})
}

func TestRedisOptionsDefaults(t *testing.T) {
	o := RedisOptions{Addr: "localhost:6379"}.client()
	assert.Equal(t, defaultRedisDialTimeout, o.DialTimeout)
	assert.Equal(t, defaultRedisIOTimeout, o.ReadTimeout)
	assert.Equal(t, defaultRedisIOTimeout, o.WriteTimeout)

	o = RedisOptions{DialTimeout: time.Second, IOTimeout: 3 * time.Second}.client()
	assert.Equal(t, time.Second, o.DialTimeout)
	assert.Equal(t, 3*time.Second, o.WriteTimeout)
}
