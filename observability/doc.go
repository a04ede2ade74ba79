// Package observability provides OpenTelemetry tracing and metrics for the
// resilience layer.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("satkit"))
//	defer tp.Shutdown(ctx)
//
//	ctx, op := observability.StartOperation(ctx, observability.SpanDBExecute, "invoices.insert")
//	defer op.End("ok", nil)
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("satkit"))
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewResilienceMetrics(observability.Meter(observability.MeterName))
//	metrics.RecordCacheLookup(ctx, observability.TierLocal, observability.ResultHit)
//
// Every Record method is a no-op on a nil *ResilienceMetrics, so components
// accept an optional metrics value without branching.
package observability
