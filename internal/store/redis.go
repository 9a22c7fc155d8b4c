package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisDialTimeout = 5 * time.Second
	defaultRedisIOTimeout   = 2 * time.Second
)

// RedisOptions configures the shared client used for rate limiting and
// token revocation. Zero timeouts take the package defaults.
type RedisOptions struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
	IOTimeout   time.Duration
}

func (o RedisOptions) client() *redis.Options {
	dial := o.DialTimeout
	if dial <= 0 {
		dial = defaultRedisDialTimeout
	}
	io := o.IOTimeout
	if io <= 0 {
		io = defaultRedisIOTimeout
	}
	return &redis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		DialTimeout:  dial,
		ReadTimeout:  io,
		WriteTimeout: io,
		// fail fast when Redis is down
		MaxRetries: 1,
	}
}

// NewRedisClient connects and pings. The client is closed again when the
// ping fails.
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	rdb := redis.NewClient(opts.client())
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s (db %d): %w", opts.Addr, opts.DB, err)
	}
	return rdb, nil
}
