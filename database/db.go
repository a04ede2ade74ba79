package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/kbukum/satkit/logger"
	"github.com/kbukum/satkit/resilience"
)

// DB wraps a GORM database with service logging.
type DB struct {
	GormDB *gorm.DB
	log    *logger.Logger
	cfg    Config
	closed bool
	mu     sync.Mutex
}

// Open connects through dialector, retrying failed connects and pings with
// exponential backoff until cfg.MaxRetries attempts are spent or ctx ends.
func Open(ctx context.Context, cfg Config, log *logger.Logger, dialector gorm.Dialector) (*DB, error) {
	cfg.ApplyDefaults()
	log = logger.For(log, logger.ComponentDatabase)

	gormCfg := &gorm.Config{
		Logger:         newSQLLogger(log, parseDurationOr(cfg.SlowQueryThreshold, 200*time.Millisecond), parseLogLevel(cfg.LogLevel)),
		TranslateError: true,
	}

	retry := resilience.RetryConfig{
		MaxAttempts:     cfg.MaxRetries,
		BaseDelay:       500 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		ExponentialBase: 2,
		Jitter:          true,
		Operation:       "database.connect",
		OnRetry: func(attempt int, err error, delay time.Duration) {
			log.Warn("Database connection attempt failed, retrying", map[string]interface{}{
				logger.FieldAttempt: attempt,
				logger.FieldError:   err.Error(),
				"backoff":           delay.String(),
			})
		},
	}

	var attempts int
	db, err := resilience.Retry(ctx, retry, func(ctx context.Context) (*gorm.DB, error) {
		attempts++
		db, err := gorm.Open(dialector, gormCfg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		return db, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("database connection canceled: %w", err)
		}
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", attempts, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(parseDurationOr(cfg.ConnMaxLifetime, time.Hour))
	sqlDB.SetConnMaxIdleTime(parseDurationOr(cfg.ConnMaxIdleTime, 5*time.Minute))

	log.Info("Database connection established", map[string]interface{}{
		"attempts": attempts,
		"driver":   cfg.Driver,
	})
	return &DB{GormDB: db, log: log, cfg: cfg}, nil
}

// Conn returns the statement-level adapter over this database.
func (d *DB) Conn() *GormConn {
	return &GormConn{db: d.GormDB}
}

// Close closes the underlying sql.DB connection pool. Safe to call multiple times.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}

	sqlDB, err := d.GormDB.DB()
	if err != nil {
		return err
	}
	d.log.Info("Closing database connection")
	d.closed = true
	return sqlDB.Close()
}

// PingContext verifies the database connection is alive.
func (d *DB) PingContext(ctx context.Context) error {
	sqlDB, err := d.GormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// AutoMigrate runs GORM auto-migration for the given models.
func (d *DB) AutoMigrate(models ...interface{}) error {
	d.log.Info("Running auto-migration", map[string]interface{}{
		"models": len(models),
	})
	for _, model := range models {
		if err := d.GormDB.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}
	return nil
}
