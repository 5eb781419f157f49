package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, limit int) (Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	l, err := NewRedis(context.Background(), &redis.Options{Addr: mr.Addr()}, limit, time.Minute, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l, mr
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
	l, mr := newTestLimiter(t, 2)
	ctx := context.Background()

	d := l.Allow(ctx, "acme")
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining())
	assert.True(t, l.Allow(ctx, "acme").Allowed)

	d = l.Allow(ctx, "acme")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining())

	assert.True(t, l.Allow(ctx, "globex").Allowed, "tenants have separate budgets")

	mr.FastForward(time.Minute + time.Second)
	assert.True(t, l.Allow(ctx, "acme").Allowed)
}

func TestRedisLimiter_SetsExpiry(t *testing.T) {
	l, mr := newTestLimiter(t, 5)
	l.Allow(context.Background(), "acme")
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"acme"))
}

func TestRedisLimiter_FailsOpen(t *testing.T) {
	l, mr := newTestLimiter(t, 1)
	mr.Close()
	assert.True(t, l.Allow(context.Background(), "acme").Allowed)
}

func TestRedisLimiter_ZeroLimitDisables(t *testing.T) {
	l, _ := newTestLimiter(t, 0)
	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow(context.Background(), "acme").Allowed)
	}
}

func TestNewRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err := NewRedis(context.Background(), &redis.Options{Addr: addr}, 1, time.Minute, zerolog.Nop())
	assert.Error(t, err)
}

func TestUnlimited(t *testing.T) {
	var l Limiter = Unlimited{}
	assert.True(t, l.Allow(context.Background(), "acme").Allowed)
	assert.NoError(t, l.Close())
}
