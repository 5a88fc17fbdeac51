package cache

import (
	"context"
	"fmt"
	"io"

	"github.com/logtower/backend/internal/domain/routing"
	"github.com/logtower/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// RouteCache is a routing.Cache that holds resources until closed
type RouteCache interface {
	routing.Cache
	io.Closer
}

// NopRouteCache never stores anything
type NopRouteCache struct{}

// Get always misses
func (NopRouteCache) Get(context.Context, string) (routing.Route, bool, error) {
	return routing.Route{}, false, nil
}

// Set discards the route
func (NopRouteCache) Set(context.Context, string, routing.Route) error { return nil }

// Close does nothing
func (NopRouteCache) Close() error { return nil }

// NewRouteCache creates the route cache selected by cfg.Driver. When Redis
// cannot be reached the in-memory cache is used instead and a warning logged,
// since a cold cache only costs extra routing calls.
func NewRouteCache(ctx context.Context, cfg config.CacheConfig, redisCfg config.RedisConfig, logger *zap.Logger) (RouteCache, error) {
	switch cfg.Driver {
	case "none":
		return NopRouteCache{}, nil
	case "memory", "":
		return NewInMemoryRouteCache(cfg.TTL, cfg.MaxEntries), nil
	case "redis":
		client, err := NewRedisClient(ctx, redisCfg.Addr(), redisCfg.Password, redisCfg.DB)
		if err != nil {
			logger.Warn("Redis unavailable, falling back to in-memory route cache",
				zap.String("addr", redisCfg.Addr()),
				zap.Error(err),
			)
			return NewInMemoryRouteCache(cfg.TTL, cfg.MaxEntries), nil
		}
		logger.Info("using Redis route cache", zap.String("addr", redisCfg.Addr()))
		return NewRedisRouteCache(client, cfg.KeyPrefix, cfg.TTL), nil
	}
	return nil, fmt.Errorf("unsupported cache driver %q", cfg.Driver)
}

// Ensure NopRouteCache implements RouteCache
var _ RouteCache = NopRouteCache{}
