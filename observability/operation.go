package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Operation tracks one traced unit of work from start to finish.
type Operation struct {
	Name      string
	StartTime time.Time

	span trace.Span
}

// StartOperation opens a span named spanName for operation and returns the
// span-carrying context.
func StartOperation(ctx context.Context, spanName, operation string) (context.Context, *Operation) {
	ctx, span := StartSpan(ctx, spanName)
	span.SetAttributes(attribute.String(AttrOperationName, operation))
	return ctx, &Operation{
		Name:      operation,
		StartTime: time.Now(),
		span:      span,
	}
}

// SetAttributes adds attributes to the operation span.
func (op *Operation) SetAttributes(kv ...attribute.KeyValue) {
	op.span.SetAttributes(kv...)
}

// End closes the span with status and err, returning the elapsed time.
func (op *Operation) End(status string, err error) time.Duration {
	duration := time.Since(op.StartTime)

	if err != nil {
		op.span.RecordError(err)
		op.span.SetStatus(codes.Error, err.Error())
		op.span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	}
	op.span.SetAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int64(AttrDurationMs, duration.Milliseconds()),
	)
	op.span.End()
	return duration
}
