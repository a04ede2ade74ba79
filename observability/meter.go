package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/satkit/logger"
)

// MeterName is the instrumentation scope used for satkit instruments.
const MeterName = "github.com/kbukum/satkit"

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// ServiceName is the name of the service.
	ServiceName string `mapstructure:"service_name"`
	// ServiceVersion is the version of the service.
	ServiceVersion string `mapstructure:"service_version"`
	// Environment is the deployment environment (dev, staging, prod).
	Environment string `mapstructure:"environment"`
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string `mapstructure:"endpoint"`
	// Insecure allows insecure connections (for development).
	Insecure bool `mapstructure:"insecure"`
	// Interval is the metric export interval.
	Interval time.Duration `mapstructure:"interval"`
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Cache tiers and results used as attribute values.
const (
	TierLocal  = "local"
	TierRemote = "remote"

	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

// ResilienceMetrics holds the instruments for caching, retries, breakers,
// database operations and transactions. A nil *ResilienceMetrics is valid and
// records nothing.
type ResilienceMetrics struct {
	cacheLookups       metric.Int64Counter
	retryAttempts      metric.Int64Counter
	breakerTransitions metric.Int64Counter
	dbOperations       metric.Int64Counter
	dbDuration         metric.Float64Histogram
	txOutcomes         metric.Int64Counter
}

// NewResilienceMetrics creates metric instruments on the given meter.
func NewResilienceMetrics(meter metric.Meter) (*ResilienceMetrics, error) {
	cacheLookups, err := meter.Int64Counter("cache.lookups",
		metric.WithDescription("Cache lookups by tier and result"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating cache.lookups counter: %w", err)
	}

	retryAttempts, err := meter.Int64Counter("retry.attempts",
		metric.WithDescription("Retried attempts by operation and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating retry.attempts counter: %w", err)
	}

	breakerTransitions, err := meter.Int64Counter("breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating breaker.transitions counter: %w", err)
	}

	dbOperations, err := meter.Int64Counter("db.operations",
		metric.WithDescription("Database operations by error class and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating db.operations counter: %w", err)
	}

	dbDuration, err := meter.Float64Histogram("db.operation.duration",
		metric.WithDescription("Duration of database operations including retries"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating db.operation.duration histogram: %w", err)
	}

	txOutcomes, err := meter.Int64Counter("tx.outcomes",
		metric.WithDescription("Transaction outcomes"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tx.outcomes counter: %w", err)
	}

	return &ResilienceMetrics{
		cacheLookups:       cacheLookups,
		retryAttempts:      retryAttempts,
		breakerTransitions: breakerTransitions,
		dbOperations:       dbOperations,
		dbDuration:         dbDuration,
		txOutcomes:         txOutcomes,
	}, nil
}

// RecordCacheLookup records one lookup against a cache tier.
func (m *ResilienceMetrics) RecordCacheLookup(ctx context.Context, tier, result string) {
	if m == nil {
		return
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tier", tier),
		attribute.String("result", result),
	))
}

// RecordRetry records a retried attempt and whether it eventually recovered.
func (m *ResilienceMetrics) RecordRetry(ctx context.Context, operation, outcome string) {
	if m == nil {
		return
	}
	m.retryAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

// RecordBreakerTransition records a breaker state change.
func (m *ResilienceMetrics) RecordBreakerTransition(ctx context.Context, name, from, to string) {
	if m == nil {
		return
	}
	m.breakerTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("name", name),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordDBOperation records a finished database operation.
func (m *ResilienceMetrics) RecordDBOperation(ctx context.Context, class, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbOperations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("class", class),
		attribute.String("status", status),
	))
	m.dbDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("status", status),
	))
}

// RecordTransaction records a transaction outcome (committed, rolled_back, failed).
func (m *ResilienceMetrics) RecordTransaction(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.txOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}
