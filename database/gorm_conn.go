package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// GormConn adapts a *gorm.DB to Connection and AtomicBatcher. Batches run
// inside a real BEGIN/COMMIT; savepoints are not exposed.
type GormConn struct {
	db *gorm.DB
}

var (
	_ Connection         = (*GormConn)(nil)
	_ AtomicBatcher      = (*GormConn)(nil)
	_ CapabilityReporter = (*GormConn)(nil)
)

// NewGormConn wraps an existing GORM handle.
func NewGormConn(db *gorm.DB) *GormConn {
	return &GormConn{db: db}
}

// Prepare returns an unbound statement for sql.
func (c *GormConn) Prepare(sql string) Statement {
	return &gormStatement{db: c.db, sql: sql}
}

// Capabilities reports atomic batches without native savepoints.
func (c *GormConn) Capabilities() Capabilities {
	return Capabilities{AtomicBatch: true, Savepoints: false}
}

// Batch runs stmts in order inside one transaction. The first failure rolls
// the whole batch back and is returned with its statement index.
func (c *GormConn) Batch(ctx context.Context, stmts []Statement) ([]Result, error) {
	results := make([]Result, 0, len(stmts))
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, stmt := range stmts {
			res, err := execOn(ctx, tx, stmt.SQL(), stmt.Args())
			if err != nil {
				return fmt.Errorf("statement %d: %w", i, err)
			}
			results = append(results, res)
		}
		return nil
	})
	if err != nil {
		return nil, NewError("batch", err)
	}
	return results, nil
}

type gormStatement struct {
	db   *gorm.DB
	sql  string
	args []any
}

func (s *gormStatement) Bind(args ...any) Statement {
	bound := make([]any, len(args))
	copy(bound, args)
	return &gormStatement{db: s.db, sql: s.sql, args: bound}
}

func (s *gormStatement) SQL() string { return s.sql }

func (s *gormStatement) Args() []any {
	out := make([]any, len(s.args))
	copy(out, s.args)
	return out
}

func (s *gormStatement) First(ctx context.Context, dest any) (bool, error) {
	tx := s.db.WithContext(ctx).Raw(s.sql, s.args...).Scan(dest)
	if tx.Error != nil {
		return false, NewError("first", tx.Error)
	}
	return tx.RowsAffected > 0, nil
}

func (s *gormStatement) All(ctx context.Context, dest any) error {
	if err := s.db.WithContext(ctx).Raw(s.sql, s.args...).Scan(dest).Error; err != nil {
		return NewError("all", err)
	}
	return nil
}

func (s *gormStatement) Run(ctx context.Context) (Result, error) {
	res, err := execOn(ctx, s.db.WithContext(ctx), s.sql, s.args)
	if err != nil {
		return Result{}, NewError("run", err)
	}
	return res, nil
}

// execOn executes a write on the connection pool bound to db so that inside a
// transaction the statement joins it. It bypasses GORM's Exec to keep the
// driver's LastInsertId, so it translates and traces the statement itself.
func execOn(ctx context.Context, db *gorm.DB, sql string, args []any) (Result, error) {
	begin := time.Now()
	res, err := db.Statement.ConnPool.ExecContext(ctx, sql, args...)

	var rows int64
	if err == nil {
		rows, _ = res.RowsAffected()
	}
	if db.Logger != nil {
		db.Logger.Trace(ctx, begin, func() (string, int64) {
			return db.Dialector.Explain(sql, args...), rows
		}, err)
	}
	if err != nil {
		if translator, ok := db.Dialector.(gorm.ErrorTranslator); ok {
			err = translator.Translate(err)
		}
		return Result{}, err
	}

	id, _ := res.LastInsertId()
	return Result{RowsAffected: rows, LastInsertID: id}, nil
}
