package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/logtower/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPDurationBuckets are bucket boundaries for request latency (seconds)
var HTTPDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

var (
	attrMethod = attribute.Key("http.method")
	attrRoute  = attribute.Key("http.route")
	attrStatus = attribute.Key("http.status_code")
)

// HTTPMetrics counts requests and records their latency per route.
// A nil meter uses the global provider, which is a no-op when telemetry is off.
func HTTPMetrics(meter metric.Meter) (gin.HandlerFunc, error) {
	if meter == nil {
		meter = otel.Meter(telemetry.MeterName)
	}
	requests, err := meter.Int64Counter("http.server.requests",
		metric.WithDescription("Dashboard API requests"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("http.server.duration",
		metric.WithDescription("Dashboard API request latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(HTTPDurationBuckets...))
	if err != nil {
		return nil, err
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx := c.Request.Context()
		base := []attribute.KeyValue{attrMethod.String(c.Request.Method), attrRoute.String(route)}
		requests.Add(ctx, 1, metric.WithAttributes(append(base, attrStatus.Int(c.Writer.Status()))...))
		duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(base...))
	}, nil
}
