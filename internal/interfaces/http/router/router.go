// Package router assembles the gin engine of the dashboard API.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/logtower/backend/internal/infrastructure/logger"
	"github.com/logtower/backend/internal/interfaces/http/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	health     gin.HandlerFunc
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// WithHealth mounts h at /health, outside the versioned API
func WithHealth(h gin.HandlerFunc) RouterOption {
	return func(r *Router) {
		r.health = h
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	if r.health != nil {
		r.engine.GET("/health", r.health)
	}
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// EngineConfig configures the middleware stack
type EngineConfig struct {
	Production bool
	CORS       middleware.CORSConfig
	Tracing    middleware.TracingConfig
	// Meter records HTTP metrics; nil uses the global provider
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewEngine creates a gin engine with the middleware stack applied in order:
// request ID, recovery, tracing, span attributes, metrics, request log,
// security headers, CORS.
func NewEngine(cfg EngineConfig) (*gin.Engine, error) {
	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	middleware.SetupValidator()

	metrics, err := middleware.HTTPMetrics(cfg.Meter)
	if err != nil {
		return nil, err
	}

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		middleware.TracingWithConfig(cfg.Tracing),
		middleware.SpanAttributes(),
		metrics,
		logger.GinMiddleware(log),
		middleware.Secure(),
		middleware.CORSWithConfig(cfg.CORS),
	)
	return engine, nil
}
