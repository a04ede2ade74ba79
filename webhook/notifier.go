package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/kbukum/satkit/errors"
	"github.com/kbukum/satkit/logger"
	"github.com/kbukum/satkit/observability"
	"github.com/kbukum/satkit/resilience"
)

// Event is one outbound notification.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data,omitempty"`
}

// Notifier POSTs events to a webhook endpoint. Each call passes through a
// bulkhead, the endpoint's circuit breaker and a retry policy, in that order.
type Notifier struct {
	cfg      Config
	url      string
	client   *http.Client
	breaker  *resilience.CircuitBreaker
	bulkhead *resilience.Bulkhead
	retry    resilience.RetryConfig
	metrics  *observability.ResilienceMetrics
	log      *logger.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithHTTPClient replaces the HTTP client. Its Timeout is left untouched.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Notifier) {
		if c != nil {
			n.client = c
		}
	}
}

// WithMetrics records retry outcomes.
func WithMetrics(m *observability.ResilienceMetrics) Option {
	return func(n *Notifier) { n.metrics = m }
}

// BreakerName returns the registry name used for the endpoint's breaker.
func BreakerName(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		return "webhook:" + u.Host
	}
	return "webhook:" + endpoint
}

// New creates a notifier. The breaker comes from registry so its state is
// shared with every other caller of the same host.
func New(cfg Config, registry *resilience.BreakerRegistry, log *logger.Logger, opts ...Option) (*Notifier, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		return nil, fmt.Errorf("webhook: breaker registry is required")
	}

	name := BreakerName(cfg.URL)
	n := &Notifier{
		cfg:      cfg,
		url:      cfg.URL,
		client:   &http.Client{Timeout: cfg.Timeout},
		breaker:  registry.GetWith(name, countDegradation(cfg.RetryStatuses)),
		bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{Name: name, MaxConcurrent: cfg.MaxConcurrent, MaxWait: cfg.MaxWait}),
		log:      logger.For(log, logger.ComponentWebhook),
	}
	for _, opt := range opts {
		opt(n)
	}

	n.retry = resilience.RetryConfig{
		MaxAttempts:     cfg.MaxAttempts,
		BaseDelay:       cfg.BaseDelay,
		MaxDelay:        cfg.MaxDelay,
		ExponentialBase: 2,
		Jitter:          true,
		Timeout:         cfg.Timeout,
		RetryIf:         resilience.NetworkRetryIf(cfg.RetryStatuses...),
		Operation:       observability.SpanWebhookNotify,
		Logger:          n.log,
	}
	return n, nil
}

// countDegradation makes the endpoint's breaker count only transient
// failures, so rejected payloads never open it for the whole host.
func countDegradation(statuses []int) func(*resilience.CircuitBreakerConfig) {
	isFailure := resilience.NetworkRetryIf(statuses...)
	return func(c *resilience.CircuitBreakerConfig) { c.IsFailure = isFailure }
}

// Enabled reports whether notifications are configured to be sent.
func (n *Notifier) Enabled() bool { return n.cfg.Enabled }

// BreakerName returns the name of the endpoint's breaker.
func (n *Notifier) BreakerName() string { return n.breaker.Name() }

// Notify sends event and returns nil on a 2xx response. A disabled
// notifier sends nothing.
//
// Failures are AppErrors: CIRCUIT_OPEN when the breaker rejected the call
// without contacting the endpoint, SERVICE_UNAVAILABLE when the bulkhead is
// full, RETRIES_EXHAUSTED when every attempt failed transiently, and
// EXTERNAL_SERVICE_ERROR for a non-retryable response.
func (n *Notifier) Notify(ctx context.Context, event Event) error {
	if !n.cfg.Enabled {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return apperrors.InvalidInput("data", err.Error())
	}

	ctx, op := observability.StartOperation(ctx, observability.SpanWebhookNotify, event.Type)

	var attempts atomic.Int32
	retry := n.retry
	retry.OnRetry = func(int, error, time.Duration) {
		n.metrics.RecordRetry(ctx, observability.SpanWebhookNotify, "retried")
	}
	retry.OnRecovered = func(int) {
		n.metrics.RecordRetry(ctx, observability.SpanWebhookNotify, "recovered")
	}

	err = n.bulkhead.Execute(ctx, func(ctx context.Context) error {
		return n.breaker.Execute(func() error {
			return resilience.RetryFunc(ctx, retry, func(ctx context.Context) error {
				attempts.Add(1)
				return n.post(ctx, event, body)
			})
		})
	})
	if err == nil {
		op.End("ok", nil)
		return nil
	}
	op.End("error", err)

	appErr := n.classify(err, int(attempts.Load()))
	n.log.WithContext(ctx).Error("webhook notification failed", map[string]interface{}{
		logger.FieldOperation:  observability.SpanWebhookNotify,
		logger.FieldAttempt:    int(attempts.Load()),
		logger.FieldErrorClass: string(appErr.Code),
		logger.FieldBreaker:    n.breaker.Name(),
		logger.FieldError:      err.Error(),
		"event_type":           event.Type,
		"event_id":             event.ID,
	})
	return appErr
}

// NotifyBestEffort sends event for callers that must not fail when the
// endpoint is unavailable. Circuit-open, bulkhead and exhausted-retry
// failures are logged and swallowed; other failures are returned.
func (n *Notifier) NotifyBestEffort(ctx context.Context, event Event) error {
	err := n.Notify(ctx, event)
	if err == nil {
		return nil
	}
	appErr, ok := apperrors.AsAppError(err)
	if ok {
		switch appErr.Code {
		case apperrors.ErrCodeCircuitOpen, apperrors.ErrCodeServiceUnavailable, apperrors.ErrCodeRetriesExhausted:
			n.log.WithContext(ctx).Warn("webhook notification skipped", map[string]interface{}{
				logger.FieldBreaker: n.breaker.Name(),
				logger.FieldStatus:  string(appErr.Code),
				"event_type":        event.Type,
			})
			return nil
		}
	}
	return err
}

func (n *Notifier) classify(err error, attempts int) *apperrors.AppError {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return apperrors.CircuitOpen(n.breaker.Name()).WithCause(err)
	case errors.Is(err, resilience.ErrBulkheadFull), errors.Is(err, resilience.ErrBulkheadTimeout):
		return apperrors.ServiceUnavailable("webhook endpoint").WithCause(err)
	case resilience.IsRetryableNetworkError(err, n.retryStatuses()):
		return apperrors.RetriesExhausted(n.breaker.Name(), attempts, err)
	default:
		return apperrors.ExternalServiceError("webhook", err)
	}
}

func (n *Notifier) retryStatuses() []int {
	if len(n.cfg.RetryStatuses) > 0 {
		return n.cfg.RetryStatuses
	}
	return resilience.DefaultRetryableStatuses
}

// post sends one attempt. The event ID doubles as the idempotency key so the
// receiver can drop duplicates produced by retries.
func (n *Notifier) post(ctx context.Context, event Event, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	for k, v := range n.cfg.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", event.ID)
	req.Header.Set("X-Event-Type", event.Type)
	if id := logger.RequestIDFromContext(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Status: resp.StatusCode, Body: respBody}
}
