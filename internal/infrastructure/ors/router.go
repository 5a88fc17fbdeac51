package ors

import (
	"context"
	"fmt"

	"github.com/logtower/backend/internal/domain/routing"
	"github.com/logtower/backend/internal/infrastructure/config"
	"github.com/logtower/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// NewRouter builds the router selected by cfg.Provider. The ors provider is
// wrapped with cache; the disabled provider answers every request with a
// zero-length route so the pipeline can run offline.
func NewRouter(cfg config.RoutingConfig, cache routing.Cache, metrics *telemetry.ETLMetrics, log *zap.Logger) (routing.Router, error) {
	switch cfg.Provider {
	case "disabled":
		log.Warn("routing disabled, distances and durations will be zero")
		return routing.RouterFunc(func(ctx context.Context, origin, destination routing.Coordinate) (routing.Route, error) {
			if err := origin.Validate(); err != nil {
				return routing.Route{}, err
			}
			if err := destination.Validate(); err != nil {
				return routing.Route{}, err
			}
			return routing.Route{}, nil
		}), nil
	case "ors", "":
		if err := cfg.RequireAPIKey(); err != nil {
			return nil, err
		}
		client, err := NewClient(Config{
			BaseURL:         cfg.BaseURL,
			APIKey:          cfg.APIKey,
			Profile:         cfg.Profile,
			Timeout:         cfg.Timeout,
			RequestsPerMin:  cfg.RequestsPerMin,
			MaxResponseSize: cfg.MaxResponseSize,
		}, WithLogger(log))
		if err != nil {
			return nil, err
		}
		return NewCachedRouter(client, cache, client.Profile(), metrics, log), nil
	}
	return nil, fmt.Errorf("unsupported routing provider %q", cfg.Provider)
}
