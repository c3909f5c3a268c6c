// Package ratelimit enforces fixed-window request limits backed by Redis.
// A nil *Limiter is a no-op, so the service runs unlimited when no Redis
// address is configured.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	appErr "runbox/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter settings.
type Config struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Window   time.Duration `yaml:"window"`
	Max      int           `yaml:"max"`
	// Timeout bounds each Redis call so a slow Redis cannot stall requests.
	Timeout time.Duration `yaml:"timeout"`
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if c.Max <= 0 {
		c.Max = 30
	}
	if c.Timeout <= 0 {
		c.Timeout = 500 * time.Millisecond
	}
	return c
}

// Limiter counts requests per key in fixed windows.
type Limiter struct {
	client  *redis.Client
	window  time.Duration
	max     int
	timeout time.Duration
}

// New connects to Redis and returns a limiter. Returns nil when no address
// is configured.
func New(cfg Config) (*Limiter, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	cfg = cfg.withDefaults()
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, appErr.Wrapf(err, appErr.CacheError, "ping redis failed")
	}
	return NewWithClient(client, cfg), nil
}

// NewWithClient builds a limiter over an existing client.
func NewWithClient(client *redis.Client, cfg Config) *Limiter {
	cfg = cfg.withDefaults()
	return &Limiter{client: client, window: cfg.Window, max: cfg.Max, timeout: cfg.Timeout}
}

// Close releases the Redis connection.
func (l *Limiter) Close() error {
	if l == nil {
		return nil
	}
	return l.client.Close()
}

// Allow admits the request or returns a TooManyRequests error. The counter
// uses SetNX to open the window, Incr to count, and re-arms the TTL if Redis
// lost it.
func (l *Limiter) Allow(ctx context.Context, key string) error {
	if l == nil {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	acquired, err := l.client.SetNX(callCtx, key, 1, l.window).Result()
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "rate limit check failed")
	}
	var count int64 = 1
	if !acquired {
		count, err = l.client.Incr(callCtx, key).Result()
		if err != nil {
			return appErr.Wrapf(err, appErr.CacheError, "rate limit check failed")
		}
		ttl, ttlErr := l.client.TTL(callCtx, key).Result()
		if ttlErr == nil && ttl <= 0 {
			_ = l.client.Expire(callCtx, key, l.window).Err()
		}
	}
	if int(count) > l.max {
		return appErr.New(appErr.TooManyRequests).
			WithMessage(fmt.Sprintf("rate limit exceeded for %s", key))
	}
	return nil
}
