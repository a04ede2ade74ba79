// Command satkit runs the resilience and caching services of the SAT
// finance app with an admin HTTP surface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/kbukum/satkit/bootstrap"
	"github.com/kbukum/satkit/cache"
	"github.com/kbukum/satkit/config"
	"github.com/kbukum/satkit/database"
	"github.com/kbukum/satkit/logger"
	"github.com/kbukum/satkit/observability"
	"github.com/kbukum/satkit/redis"
	"github.com/kbukum/satkit/resilience"
	"github.com/kbukum/satkit/server"
	"github.com/kbukum/satkit/version"
	"github.com/kbukum/satkit/webhook"
)

const serviceName = "satkit"

func main() {
	configFile := flag.String("config", "", "path to config.yml")
	flag.Parse()

	if err := run(context.Background(), *configFile); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configFile string) error {
	var cfg AppConfig
	opts := []config.LoaderOption{config.WithEnvPrefix("SATKIT")}
	if configFile != "" {
		opts = append(opts, config.WithConfigFile(configFile))
	}
	if err := config.LoadConfig(serviceName, &cfg, opts...); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Name == "" {
		cfg.Name = serviceName
	}
	if cfg.Version == "" {
		cfg.Version = version.Get().String()
	}

	cfg.ApplyDefaults()
	logger.Init(cfg.Logging, cfg.Name)
	logger.RegisterDefaults()
	log := logger.GetGlobalLogger()

	app, err := bootstrap.NewApp(&cfg, bootstrap.WithLogger(log))
	if err != nil {
		return err
	}

	metrics, err := initTelemetry(ctx, app)
	if err != nil {
		return err
	}

	var db *database.Component
	if cfg.Database.Enabled {
		executor := database.NewExecutor(database.ExecutorConfig{Retry: cfg.Database.RetryConfig(), Metrics: metrics}, nil)
		db = database.NewComponent(cfg.Database, nil).WithExecutor(executor)
		if err := app.RegisterComponent(db); err != nil {
			return err
		}
	}
	var rdb *redis.Component
	if cfg.Redis.Enabled {
		rdb = redis.NewComponent(cfg.Redis, nil)
		if err := app.RegisterComponent(rdb); err != nil {
			return err
		}
	}

	if err := app.Start(ctx); err != nil {
		return err
	}

	breakers := resilience.NewBreakerRegistry(breakerDefaults(&cfg, metrics))

	tieredOpts := []cache.TieredOption{cache.WithMetrics(metrics)}
	if rdb != nil && rdb.Client() != nil {
		tieredOpts = append(tieredOpts, cache.WithRemote(rdb.Remote()))
	}
	tiered := cache.NewTiered(cache.NewStore(cache.WithCapacity(cfg.Cache.Capacity)), cfg.Cache, tieredOpts...)

	notifier, err := webhook.New(cfg.Webhook, breakers, nil, webhook.WithMetrics(metrics))
	if err != nil {
		return abort(app, fmt.Errorf("webhook: %w", err))
	}
	log.Info("services ready", map[string]interface{}{
		"cache_remote":    tiered.HasRemote(),
		"webhook_enabled": notifier.Enabled(),
		"tx_timeout":      cfg.Transaction.Timeout.String(),
	})

	if cfg.Server.Enabled {
		srv := server.New(cfg.Server, nil)
		admin := &server.Admin{
			Service:  cfg.Name,
			Version:  cfg.Version,
			Checker:  app.Components.HealthAll,
			Breakers: breakers,
			Cache:    tiered,
			Log:      log,
		}
		admin.Register(srv.Engine())
		if err := app.RegisterComponent(server.NewComponent(srv)); err != nil {
			return abort(app, err)
		}
		if err := app.Components.StartAll(ctx); err != nil {
			return abort(app, fmt.Errorf("start admin server: %w", err))
		}
	}

	app.WaitForSignal(ctx)
	return app.Shutdown()
}

// abort stops everything started so far and reports err with any shutdown
// failure.
func abort(app *bootstrap.App[*AppConfig], err error) error {
	return errors.Join(err, app.Shutdown())
}

// breakerDefaults feeds every breaker transition into logs and metrics.
func breakerDefaults(cfg *AppConfig, metrics *observability.ResilienceMetrics) resilience.CircuitBreakerConfig {
	defaults := cfg.BreakerDefaults()
	log := logger.Get(logger.ComponentBreaker)
	defaults.OnStateChange = func(name string, from, to resilience.State) {
		metrics.RecordBreakerTransition(context.Background(), name, from.String(), to.String())
		fields := map[string]interface{}{
			logger.FieldBreaker: name,
			"from":              from.String(),
			"to":                to.String(),
		}
		if to == resilience.StateOpen {
			log.Warn("circuit breaker opened", fields)
			return
		}
		log.Info("circuit breaker state changed", fields)
	}
	return defaults
}

// initTelemetry starts the meter and tracer providers when enabled and
// flushes them on shutdown. Metrics are nil when disabled.
func initTelemetry(ctx context.Context, app *bootstrap.App[*AppConfig]) (*observability.ResilienceMetrics, error) {
	cfg := app.Cfg
	if cfg.Tracing.Enabled {
		tp, err := observability.InitTracer(ctx, cfg.Tracing)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		app.OnStop(tp.Shutdown)
	}
	if !cfg.Metrics.Enabled {
		return nil, nil
	}
	mp, err := observability.InitMeter(ctx, cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("init meter: %w", err)
	}
	app.OnStop(mp.Shutdown)
	return observability.NewResilienceMetrics(observability.Meter(observability.MeterName))
}
