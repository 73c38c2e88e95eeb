package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options describes the redis connection
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects to redis and verifies the connection with a ping.
// Addr may be a host:port pair or a redis:// URL.
func NewClient(ctx context.Context, opts Options) (*redis.Client, error) {
	var ro *redis.Options
	if parsed, err := redis.ParseURL(opts.Addr); err == nil {
		ro = parsed
	} else {
		ro = &redis.Options{Addr: opts.Addr}
	}
	if opts.Password != "" {
		ro.Password = opts.Password
	}
	if opts.DB != 0 {
		ro.DB = opts.DB
	}
	ro.DialTimeout = 3 * time.Second

	client := redis.NewClient(ro)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", ro.Addr, err)
	}
	return client, nil
}

// Pinger adapts a client to a context-aware health check
func Pinger(client redis.UniversalClient) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
