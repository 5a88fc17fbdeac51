package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of logtower metrics
const MeterName = "github.com/logtower/backend"

// Metric attribute keys
var (
	AttrKeyOutcome = attribute.Key("outcome")
	AttrKeyStatus  = attribute.Key("status")
	AttrKeyResult  = attribute.Key("result")
	AttrKeyTable   = attribute.Key("table")
)

// Row outcomes
const (
	OutcomeInserted  = "inserted"
	OutcomeDuplicate = "duplicate"
	OutcomeUpdated   = "updated"
	OutcomeFailed    = "failed"
)

// Routing call results
const (
	ResultLive  = "live"
	ResultCache = "cache"
	ResultError = "error"
)

// RoutingDurationBuckets are bucket boundaries for routing calls (seconds)
var RoutingDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}

// ETLMetrics are the instruments recorded by the pipeline, the routing
// client and the exporter
type ETLMetrics struct {
	rows         metric.Int64Counter
	files        metric.Int64Counter
	routing      metric.Int64Counter
	routingTime  metric.Float64Histogram
	exportedRows metric.Int64Counter
}

// NewETLMetrics creates the instruments on meter; a nil meter uses the global provider.
func NewETLMetrics(meter metric.Meter) (*ETLMetrics, error) {
	if meter == nil {
		meter = otel.Meter(MeterName)
	}
	m := &ETLMetrics{}
	var err error

	if m.rows, err = meter.Int64Counter("etl.rows",
		metric.WithDescription("Spreadsheet rows processed, by outcome"),
		metric.WithUnit("{row}")); err != nil {
		return nil, fmt.Errorf("failed to create counter etl.rows: %w", err)
	}
	if m.files, err = meter.Int64Counter("etl.files",
		metric.WithDescription("Spreadsheets processed, by final run status"),
		metric.WithUnit("{file}")); err != nil {
		return nil, fmt.Errorf("failed to create counter etl.files: %w", err)
	}
	if m.routing, err = meter.Int64Counter("routing.requests",
		metric.WithDescription("Route lookups, by result"),
		metric.WithUnit("{request}")); err != nil {
		return nil, fmt.Errorf("failed to create counter routing.requests: %w", err)
	}
	if m.routingTime, err = meter.Float64Histogram("routing.duration",
		metric.WithDescription("Latency of live routing service calls"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(RoutingDurationBuckets...)); err != nil {
		return nil, fmt.Errorf("failed to create histogram routing.duration: %w", err)
	}
	if m.exportedRows, err = meter.Int64Counter("export.rows",
		metric.WithDescription("Rows written to flat files, by table"),
		metric.WithUnit("{row}")); err != nil {
		return nil, fmt.Errorf("failed to create counter export.rows: %w", err)
	}
	return m, nil
}

// NopETLMetrics returns instruments bound to a no-op meter
func NopETLMetrics() *ETLMetrics {
	m, _ := NewETLMetrics(noopMeter())
	return m
}

// RowProcessed counts a row by outcome
func (m *ETLMetrics) RowProcessed(ctx context.Context, outcome string) {
	m.rows.Add(ctx, 1, metric.WithAttributes(AttrKeyOutcome.String(outcome)))
}

// FileProcessed counts a file by run status
func (m *ETLMetrics) FileProcessed(ctx context.Context, status string) {
	m.files.Add(ctx, 1, metric.WithAttributes(AttrKeyStatus.String(status)))
}

// RouteLookup counts a route lookup; live calls also record their latency
func (m *ETLMetrics) RouteLookup(ctx context.Context, result string, elapsed time.Duration) {
	m.routing.Add(ctx, 1, metric.WithAttributes(AttrKeyResult.String(result)))
	if result != ResultCache {
		m.routingTime.Record(ctx, elapsed.Seconds(), metric.WithAttributes(AttrKeyResult.String(result)))
	}
}

// RowsExported counts rows written for a table
func (m *ETLMetrics) RowsExported(ctx context.Context, table string, n int) {
	m.exportedRows.Add(ctx, int64(n), metric.WithAttributes(AttrKeyTable.String(table)))
}
