package cache

import (
	"context"
	"testing"
	"time"

	"github.com/logtower/backend/internal/domain/routing"
	"github.com/logtower/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestInMemoryRouteCache_GetSet(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)}
	c := newInMemoryRouteCache(time.Hour, 10, clock.Now)

	t.Run("miss on unknown key", func(t *testing.T) {
		_, ok, err := c.Get(ctx, "a")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("hit after set", func(t *testing.T) {
		route := routing.Route{DistanceMeters: 95500, DurationSeconds: 4815}
		require.NoError(t, c.Set(ctx, "a", route))

		got, ok, err := c.Get(ctx, "a")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, route, got)
	})

	t.Run("expires after ttl", func(t *testing.T) {
		clock.Advance(time.Hour)
		_, ok, err := c.Get(ctx, "a")
		require.NoError(t, err)
		assert.False(t, ok)

		c.cleanup()
		assert.Equal(t, 0, c.Size())
	})
}

func TestInMemoryRouteCache_ZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Now()}
	c := newInMemoryRouteCache(0, 10, clock.Now)

	require.NoError(t, c.Set(ctx, "a", routing.Route{DistanceMeters: 1}))
	clock.Advance(365 * 24 * time.Hour)

	_, ok, _ := c.Get(ctx, "a")
	assert.True(t, ok)
}

func TestInMemoryRouteCache_EvictsWhenFull(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Now()}
	c := newInMemoryRouteCache(time.Hour, 2, clock.Now)

	require.NoError(t, c.Set(ctx, "first", routing.Route{DistanceMeters: 1}))
	clock.Advance(time.Minute)
	require.NoError(t, c.Set(ctx, "second", routing.Route{DistanceMeters: 2}))
	clock.Advance(time.Minute)
	require.NoError(t, c.Set(ctx, "third", routing.Route{DistanceMeters: 3}))

	assert.Equal(t, 2, c.Size())
	_, ok, _ := c.Get(ctx, "first")
	assert.False(t, ok, "entry closest to expiry is evicted")
	_, ok, _ = c.Get(ctx, "third")
	assert.True(t, ok)

	// overwriting an existing key never evicts
	require.NoError(t, c.Set(ctx, "third", routing.Route{DistanceMeters: 4}))
	assert.Equal(t, 2, c.Size())
}

func TestInMemoryRouteCache_Close(t *testing.T) {
	c := NewInMemoryRouteCache(time.Hour, 0)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestNewRouteCache(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	t.Run("none", func(t *testing.T) {
		c, err := NewRouteCache(ctx, config.CacheConfig{Driver: "none"}, config.RedisConfig{}, logger)
		require.NoError(t, err)
		require.NoError(t, c.Set(ctx, "k", routing.Route{DistanceMeters: 1}))
		_, ok, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("memory", func(t *testing.T) {
		c, err := NewRouteCache(ctx, config.CacheConfig{Driver: "memory", TTL: time.Hour}, config.RedisConfig{}, logger)
		require.NoError(t, err)
		defer c.Close()
		assert.IsType(t, &InMemoryRouteCache{}, c)
	})

	t.Run("unreachable redis falls back to memory", func(t *testing.T) {
		c, err := NewRouteCache(ctx, config.CacheConfig{Driver: "redis", TTL: time.Hour},
			config.RedisConfig{Host: "127.0.0.1", Port: 1}, logger)
		require.NoError(t, err)
		defer c.Close()
		assert.IsType(t, &InMemoryRouteCache{}, c)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := NewRouteCache(ctx, config.CacheConfig{Driver: "memcached"}, config.RedisConfig{}, logger)
		assert.Error(t, err)
	})
}
