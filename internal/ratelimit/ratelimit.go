// Package ratelimit enforces a per-tenant fixed-window ingest budget in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "nbstreamer:ratelimit:"

// Limiter decides whether a tenant may submit another event.
type Limiter interface {
	Allow(ctx context.Context, tenant string) Decision
	Close() error
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Count     int
	WindowEnd time.Time
}

// Remaining is how many events the tenant may still submit in this window.
func (d Decision) Remaining() int {
	if d.Count >= d.Limit {
		return 0
	}
	return d.Limit - d.Count
}

// Unlimited allows everything. Used when no Redis is configured.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) Decision { return Decision{Allowed: true} }
func (Unlimited) Close() error                           { return nil }

type redisLimiter struct {
	client  *redis.Client
	log     zerolog.Logger
	limit   int
	window  time.Duration
	timeout time.Duration
}

// NewRedis connects to Redis and verifies it with a ping.
func NewRedis(ctx context.Context, opts *redis.Options, limit int, window time.Duration, log zerolog.Logger) (Limiter, error) {
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return newRedisLimiter(client, limit, window, log), nil
}

func newRedisLimiter(client *redis.Client, limit int, window time.Duration, log zerolog.Logger) *redisLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &redisLimiter{
		client:  client,
		log:     log,
		limit:   limit,
		window:  window,
		timeout: 250 * time.Millisecond,
	}
}

// Allow increments the tenant's counter. Redis errors fail open.
func (rl *redisLimiter) Allow(ctx context.Context, tenant string) Decision {
	if rl.limit <= 0 {
		return Decision{Allowed: true}
	}
	ctx, cancel := context.WithTimeout(ctx, rl.timeout)
	defer cancel()

	key := keyPrefix + tenant
	count, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		rl.logError("incr", tenant, err)
		return Decision{Allowed: true, Limit: rl.limit}
	}
	if count == 1 {
		if err := rl.client.Expire(ctx, key, rl.window).Err(); err != nil {
			rl.logError("expire", tenant, err)
		}
	}
	ttl, err := rl.client.TTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		ttl = rl.window
	}
	return Decision{
		Allowed:   int(count) <= rl.limit,
		Limit:     rl.limit,
		Count:     int(count),
		WindowEnd: time.Now().Add(ttl),
	}
}

func (rl *redisLimiter) Close() error {
	return rl.client.Close()
}

func (rl *redisLimiter) logError(op, tenant string, err error) {
	rl.log.Error().Err(err).Str("op", op).Str("tenant", tenant).Msg("redis rate limiter error")
}
