package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kbukum/satkit/logger"
	"github.com/kbukum/satkit/observability"
)

// Remote is a durable cache backend shared across processes. Values are
// opaque strings; a miss is reported as ok == false with a nil error.
// Bulk prefix deletion is deliberately absent.
type Remote interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Config configures the process cache.
type Config struct {
	// Capacity is the local tier's entry limit.
	Capacity int `mapstructure:"capacity"`
	// DefaultTTL is how long a value copied down from the remote tier stays local.
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	// RemoteTimeout bounds each remote call.
	RemoteTimeout time.Duration `mapstructure:"remote_timeout"`
	// DisableSingleFlight lets concurrent misses for one key each run the producer.
	DisableSingleFlight bool `mapstructure:"disable_single_flight"`
	// ProduceTimeout bounds a producer call shared by coalesced misses.
	ProduceTimeout time.Duration `mapstructure:"produce_timeout"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.DefaultTTL == 0 {
		c.DefaultTTL = 5 * time.Minute
	}
	if c.RemoteTimeout <= 0 {
		c.RemoteTimeout = 200 * time.Millisecond
	}
	if c.ProduceTimeout <= 0 {
		c.ProduceTimeout = 30 * time.Second
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("cache: capacity must be positive")
	}
	if c.DefaultTTL < 0 {
		return fmt.Errorf("cache: default_ttl must not be negative")
	}
	return nil
}

// TieredOption configures a Tiered cache.
type TieredOption func(*Tiered)

// WithRemote attaches the remote tier. A nil remote leaves the cache local-only.
func WithRemote(r Remote) TieredOption {
	return func(t *Tiered) { t.remote = r }
}

// WithLogger sets the logger used for swallowed remote failures.
func WithLogger(l *logger.Logger) TieredOption {
	return func(t *Tiered) { t.log = l }
}

// WithMetrics records lookups per tier.
func WithMetrics(m *observability.ResilienceMetrics) TieredOption {
	return func(t *Tiered) { t.metrics = m }
}

// Tiered reads through an optional remote cache and a local Store. Remote
// failures are logged and never reach the caller; the local tier is always
// written so at least one tier holds the value.
type Tiered struct {
	cfg     Config
	local   *Store
	remote  Remote
	log     *logger.Logger
	metrics *observability.ResilienceMetrics
	flight  singleflight.Group
}

// NewTiered creates a tiered cache over local.
func NewTiered(local *Store, cfg Config, opts ...TieredOption) *Tiered {
	cfg.ApplyDefaults()
	t := &Tiered{cfg: cfg, local: local}
	for _, opt := range opts {
		opt(t)
	}
	t.log = logger.For(t.log, logger.ComponentCache)
	return t
}

// Local returns the local tier.
func (t *Tiered) Local() *Store { return t.local }

// HasRemote reports whether a remote tier is configured.
func (t *Tiered) HasRemote() bool { return t.remote != nil }

// Read returns the cached value for key, trying the remote tier first. A
// remote hit also refreshes the local tier.
//
// Values that came through the remote tier are JSON-decoded into generic
// form (map[string]any, []any, float64), while a local-only hit returns the
// value as written. Callers that need a concrete type use Wrap.
func (t *Tiered) Read(ctx context.Context, key string) (any, bool) {
	if raw, ok := t.readRemote(ctx, key); ok {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			return v, true
		}
		t.log.Warn("discarding undecodable remote value", map[string]interface{}{logger.FieldKey: key})
	}

	v, ok := t.readLocal(ctx, key)
	if !ok {
		return nil, false
	}
	if rawMsg, isRaw := v.(json.RawMessage); isRaw {
		var decoded any
		if err := json.Unmarshal(rawMsg, &decoded); err != nil {
			return nil, false
		}
		return decoded, true
	}
	return v, true
}

// Write stores value in both tiers. A ttl <= 0 never expires.
func (t *Tiered) Write(ctx context.Context, key string, value any, ttl time.Duration) {
	if t.remote != nil {
		if data, err := json.Marshal(value); err != nil {
			t.log.Warn("remote cache encode failed", map[string]interface{}{
				logger.FieldKey:   key,
				logger.FieldError: err.Error(),
			})
		} else {
			rctx, cancel := context.WithTimeout(ctx, t.cfg.RemoteTimeout)
			err := t.remote.Put(rctx, key, string(data), ttl)
			cancel()
			if err != nil {
				t.log.Warn("remote cache write failed", map[string]interface{}{
					logger.FieldKey:   key,
					logger.FieldError: err.Error(),
				})
			}
		}
	}
	t.local.Set(key, value, ttl)
}

// Delete removes key from both tiers.
func (t *Tiered) Delete(ctx context.Context, key string) {
	if t.remote != nil {
		rctx, cancel := context.WithTimeout(ctx, t.cfg.RemoteTimeout)
		err := t.remote.Delete(rctx, key)
		cancel()
		if err != nil {
			t.log.Warn("remote cache delete failed", map[string]interface{}{
				logger.FieldKey:   key,
				logger.FieldError: err.Error(),
			})
		}
	}
	t.local.Delete(key)
}

// InvalidatePrefix removes every local key starting with prefix + ":" and
// returns how many were removed. The remote tier is not touched; its entries
// age out by TTL.
func (t *Tiered) InvalidatePrefix(prefix string) int {
	return t.local.DeletePrefix(prefix + ":")
}

func (t *Tiered) readRemote(ctx context.Context, key string) (string, bool) {
	if t.remote == nil {
		return "", false
	}

	rctx, cancel := context.WithTimeout(ctx, t.cfg.RemoteTimeout)
	defer cancel()

	raw, ok, err := t.remote.Get(rctx, key)
	switch {
	case err != nil:
		t.metrics.RecordCacheLookup(ctx, observability.TierRemote, observability.ResultError)
		t.log.Warn("remote cache read failed, using local tier", map[string]interface{}{
			logger.FieldKey:   key,
			logger.FieldError: err.Error(),
		})
		return "", false
	case !ok:
		t.metrics.RecordCacheLookup(ctx, observability.TierRemote, observability.ResultMiss)
		return "", false
	}

	t.metrics.RecordCacheLookup(ctx, observability.TierRemote, observability.ResultHit)
	t.local.Set(key, json.RawMessage(raw), t.cfg.DefaultTTL)
	return raw, true
}

func (t *Tiered) readLocal(ctx context.Context, key string) (any, bool) {
	v, ok := t.local.Get(key)
	if ok {
		t.metrics.RecordCacheLookup(ctx, observability.TierLocal, observability.ResultHit)
	} else {
		t.metrics.RecordCacheLookup(ctx, observability.TierLocal, observability.ResultMiss)
	}
	return v, ok
}

// lookup returns the cached value for key decoded as T.
func lookup[T any](ctx context.Context, t *Tiered, key string) (T, bool) {
	var zero T

	if raw, ok := t.readRemote(ctx, key); ok {
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			return v, true
		}
	}

	v, ok := t.readLocal(ctx, key)
	if !ok {
		return zero, false
	}
	switch val := v.(type) {
	case T:
		return val, true
	case json.RawMessage:
		var out T
		if err := json.Unmarshal(val, &out); err != nil {
			return zero, false
		}
		return out, true
	default:
		return zero, false
	}
}

// Wrap returns the cached value for key or, on a miss, runs produce, caches
// its result for ttl (<= 0 never expires) and returns it. A produce error is
// returned as-is and nothing is cached.
//
// Concurrent misses for the same key share one produce call unless
// Config.DisableSingleFlight is set. A shared call runs detached from the
// caller that started it, bounded by Config.ProduceTimeout, and each caller
// stops waiting when its own ctx is done.
func Wrap[T any](ctx context.Context, t *Tiered, key string, ttl time.Duration, produce func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := lookup[T](ctx, t, key); ok {
		return v, nil
	}

	load := func(ctx context.Context) (T, error) {
		v, err := produce(ctx)
		if err != nil {
			return v, err
		}
		t.Write(ctx, key, v, ttl)
		return v, nil
	}

	if t.cfg.DisableSingleFlight {
		return load(ctx)
	}

	ch := t.flight.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.cfg.ProduceTimeout)
		defer cancel()
		// A concurrent flight may have filled the cache already.
		if v, ok := lookup[T](fctx, t, key); ok {
			return v, nil
		}
		return load(fctx)
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(T)
		return v, nil
	}
}
