package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of logtower spans
const TracerName = "github.com/logtower/backend"

// Span attribute keys
const (
	AttrFile      = "etl.file"
	AttrRow       = "etl.row"
	AttrCTeNumber = "cte.numero"
	AttrOutcome   = "etl.outcome"
	AttrProfile   = "routing.profile"
	AttrCacheHit  = "routing.cache_hit"
)

// StartSpan starts an internal span named name with the given attributes.
// The caller ends the span.
//
//	ctx, span := telemetry.StartSpan(ctx, "etl.row", attribute.Int(telemetry.AttrRow, n))
//	defer span.End()
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// StartClientSpan starts a span for an outgoing call to a remote service
func StartClientSpan(ctx context.Context, service, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, fmt.Sprintf("%s.%s", service, operation),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// RecordError records err on the span and marks it failed. Nil errors are ignored.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
