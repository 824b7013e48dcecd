// Package trace wraps the otel tracer the rest of the engine shares,
// giving tool dispatch (pkg/executor) and orchestrator turns
// (pkg/orchestrator) a consistent span-naming convention.
package trace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/graphmind/codegraph"

// Start begins a span named op under the shared tracer.
func Start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, op, trace.WithAttributes(attrs...))
}

// Wrap runs fn inside a span named op, recording any returned error on the
// span and setting its status accordingly.
func Wrap(ctx context.Context, op string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := Start(ctx, op, attrs...)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// WrapResult runs fn inside a span named op, recording any returned error,
// and returns fn's value alongside its error.
func WrapResult[T any](ctx context.Context, op string, fn func(context.Context) (T, error), attrs ...attribute.KeyValue) (T, error) {
	ctx, span := Start(ctx, op, attrs...)
	defer span.End()

	v, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return v, err
	}
	span.SetStatus(codes.Ok, "")
	return v, nil
}
