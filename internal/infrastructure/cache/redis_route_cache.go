package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/logtower/backend/internal/domain/routing"
	"github.com/redis/go-redis/v9"
)

// RedisRouteCache implements routing.Cache using Redis, so repeated runs
// and several ETL hosts share computed routes
type RedisRouteCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisClient connects to Redis and checks the connection
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisRouteCache creates a cache on an existing Redis client
func NewRedisRouteCache(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisRouteCache {
	if keyPrefix == "" {
		keyPrefix = "logtower:route:"
	}
	return &RedisRouteCache{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

// Get returns the cached route for key
func (c *RedisRouteCache) Get(ctx context.Context, key string) (routing.Route, bool, error) {
	data, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return routing.Route{}, false, nil
	}
	if err != nil {
		return routing.Route{}, false, fmt.Errorf("failed to read cached route: %w", err)
	}

	var r cachedRoute
	if err := json.Unmarshal(data, &r); err != nil {
		return routing.Route{}, false, fmt.Errorf("failed to decode cached route: %w", err)
	}
	return routing.Route{DistanceMeters: r.Distance, DurationSeconds: r.Duration}, true, nil
}

// Set stores a route under key with the configured TTL
func (c *RedisRouteCache) Set(ctx context.Context, key string, route routing.Route) error {
	data, err := json.Marshal(cachedRoute{Distance: route.DistanceMeters, Duration: route.DurationSeconds})
	if err != nil {
		return fmt.Errorf("failed to encode route: %w", err)
	}
	if err := c.client.Set(ctx, c.keyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache route: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (c *RedisRouteCache) Close() error {
	return c.client.Close()
}

type cachedRoute struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
}

// Ensure RedisRouteCache implements routing.Cache
var _ routing.Cache = (*RedisRouteCache)(nil)
