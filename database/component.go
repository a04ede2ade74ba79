package database

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kbukum/satkit/component"
	"github.com/kbukum/satkit/logger"
)

// DriverFunc builds a dialector from a DSN.
type DriverFunc func(dsn string) gorm.Dialector

// Component wraps DB and implements component.Component for lifecycle management.
type Component struct {
	db       *DB
	cfg      Config
	log      *logger.Logger
	driver   DriverFunc
	executor *Executor
	models   []interface{}
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent creates a database component. SQLite is used unless
// WithDriver supplies another dialector.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	log = logger.For(log, logger.ComponentDatabase)
	return &Component{
		cfg:      cfg,
		log:      log,
		driver:   sqlite.Open,
		executor: NewExecutor(ExecutorConfig{Retry: cfg.RetryConfig()}, log),
	}
}

// WithDriver overrides the dialector constructor.
func (c *Component) WithDriver(fn DriverFunc) *Component {
	if fn != nil {
		c.driver = fn
	}
	return c
}

// WithExecutor replaces the executor used for health checks.
func (c *Component) WithExecutor(e *Executor) *Component {
	if e != nil {
		c.executor = e
	}
	return c
}

// WithAutoMigrate registers models for auto-migration on Start.
func (c *Component) WithAutoMigrate(models ...interface{}) *Component {
	c.models = append(c.models, models...)
	return c
}

// DB returns the underlying *DB, or nil if not started.
func (c *Component) DB() *DB {
	return c.db
}

// Name returns the component name.
func (c *Component) Name() string { return "database" }

// Start connects to the database and runs auto-migration for registered models.
func (c *Component) Start(ctx context.Context) error {
	db, err := Open(ctx, c.cfg, c.log, c.driver(c.cfg.DSN))
	if err != nil {
		return fmt.Errorf("database start: %w", err)
	}
	c.db = db

	if len(c.models) > 0 {
		if err := c.db.AutoMigrate(c.models...); err != nil {
			return fmt.Errorf("database auto-migrate: %w", err)
		}
	}
	return nil
}

// Stop closes the connection pool.
func (c *Component) Stop(_ context.Context) error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Health runs the executor's health query.
func (c *Component) Health(ctx context.Context) component.Health {
	if c.db == nil {
		return component.Health{
			Name:    c.Name(),
			Status:  component.StatusUnhealthy,
			Message: "database not initialized",
		}
	}
	if !c.executor.HealthCheck(ctx, c.db.Conn()) {
		return component.Health{
			Name:    c.Name(),
			Status:  component.StatusUnhealthy,
			Message: "health query failed",
		}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

// Describe summarizes the connection for the startup log.
func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "Database",
		Type:    "database",
		Details: fmt.Sprintf("DSN=%s driver=%s pool=%d/%d retries=%d", maskDSN(c.cfg.DSN), c.cfg.Driver, c.cfg.MaxOpenConns, c.cfg.MaxIdleConns, c.cfg.MaxRetries),
	}
}

// maskDSN hides credentials of the form user:password@.
func maskDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at < 0 {
		return dsn
	}
	start := 0
	if i := strings.Index(dsn, "://"); i >= 0 && i < at {
		start = i + len("://")
	}
	if colon := strings.Index(dsn[start:at], ":"); colon >= 0 {
		return dsn[:start+colon] + ":***" + dsn[at:]
	}
	return dsn
}
