package ors

import (
	"context"
	"time"

	"github.com/logtower/backend/internal/domain/routing"
	"github.com/logtower/backend/internal/infrastructure/logger"
	"github.com/logtower/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// CachedRouter answers from a route cache and falls back to the wrapped
// router on a miss. Cache failures degrade to a live call.
type CachedRouter struct {
	next    routing.Router
	cache   routing.Cache
	profile string
	metrics *telemetry.ETLMetrics
	logger  *zap.Logger
}

// NewCachedRouter wraps next with cache. A nil metrics records nothing.
func NewCachedRouter(next routing.Router, cache routing.Cache, profile string, metrics *telemetry.ETLMetrics, log *zap.Logger) *CachedRouter {
	if metrics == nil {
		metrics = telemetry.NopETLMetrics()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedRouter{
		next:    next,
		cache:   cache,
		profile: profile,
		metrics: metrics,
		logger:  log.Named("route_cache"),
	}
}

// Route returns the cached route or computes and caches it
func (r *CachedRouter) Route(ctx context.Context, origin, destination routing.Coordinate) (routing.Route, error) {
	start := time.Now()
	key := routing.CacheKey(r.profile, origin, destination)
	span := trace.SpanFromContext(ctx)

	route, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		logger.L(ctx, r.logger).Warn("route cache read failed", zap.String("key", key), zap.Error(err))
	}
	if ok {
		span.SetAttributes(attribute.Bool(telemetry.AttrCacheHit, true))
		r.metrics.RouteLookup(ctx, telemetry.ResultCache, time.Since(start))
		return route, nil
	}
	span.SetAttributes(attribute.Bool(telemetry.AttrCacheHit, false))

	route, err = r.next.Route(ctx, origin, destination)
	if err != nil {
		r.metrics.RouteLookup(ctx, telemetry.ResultError, time.Since(start))
		return routing.Route{}, err
	}
	r.metrics.RouteLookup(ctx, telemetry.ResultLive, time.Since(start))

	if err := r.cache.Set(ctx, key, route); err != nil {
		logger.L(ctx, r.logger).Warn("route cache write failed", zap.String("key", key), zap.Error(err))
	}
	return route, nil
}

// Ensure CachedRouter implements routing.Router
var _ routing.Router = (*CachedRouter)(nil)
