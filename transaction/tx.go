package transaction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/satkit/database"
	"github.com/kbukum/satkit/logger"
	"github.com/kbukum/satkit/observability"
)

// State is the lifecycle state of a Tx.
type State string

const (
	StatePending    State = "pending"
	StateActive     State = "active"
	StateCommitted  State = "committed"
	StateRolledBack State = "rolled_back"
	StateFailed     State = "failed"
)

var (
	// ErrInvalidState is returned when an operation is not allowed in the
	// transaction's current state.
	ErrInvalidState = errors.New("invalid transaction state")
	// ErrUnknownSavepoint is returned by RollbackToSavepoint for an unrecorded name.
	ErrUnknownSavepoint = errors.New("unknown savepoint")
)

// Conn is what a Tx needs from a database: statement preparation and one
// atomic batch send.
type Conn interface {
	database.Connection
	database.AtomicBatcher
}

// Handle refers to a prepared operation inside a Tx.
type Handle struct {
	index int
	sql   string
}

// Index returns the operation's position in the pending batch.
func (h Handle) Index() int { return h.index }

// SQL returns the operation's statement text.
func (h Handle) SQL() string { return h.sql }

type savepoint struct {
	name  string
	index int
}

// Tx buffers prepared statements and sends them as a single atomic batch on
// Commit. Nothing reaches the database before Commit, and a failed Commit is
// never re-sent.
//
// A Tx belongs to one unit of work. Its methods are serialized so that a
// unit of work abandoned on timeout cannot race the rollback.
type Tx struct {
	mu         sync.Mutex
	id         string
	conn       Conn
	state      State
	operations []database.Statement
	savepoints []savepoint
	startedAt  time.Time
	endedAt    time.Time

	executor *database.Executor
	metrics  *observability.ResilienceMetrics
	log      *logger.Logger
}

// Option configures a Tx.
type Option func(*Tx)

// WithExecutor routes Commit through e. Retries are always disabled for the commit.
func WithExecutor(e *database.Executor) Option {
	return func(tx *Tx) {
		if e != nil {
			tx.executor = e
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(tx *Tx) {
		if log != nil {
			tx.log = log.WithComponent(logger.ComponentTransaction)
		}
	}
}

// WithMetrics records transaction outcomes.
func WithMetrics(m *observability.ResilienceMetrics) Option {
	return func(tx *Tx) { tx.metrics = m }
}

// New creates a pending transaction over conn.
func New(conn Conn, opts ...Option) *Tx {
	tx := &Tx{
		id:    uuid.NewString(),
		conn:  conn,
		state: StatePending,
		log:   logger.Get(logger.ComponentTransaction),
	}
	for _, opt := range opts {
		opt(tx)
	}
	if tx.executor == nil {
		tx.executor = database.NewExecutor(database.DefaultExecutorConfig(), tx.log)
	}
	return tx
}

// ID returns the transaction's unique identifier.
func (tx *Tx) ID() string { return tx.id }

// State returns the current state.
func (tx *Tx) State() State {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.state
}

// Operations returns a copy of the pending statements.
func (tx *Tx) Operations() []database.Statement {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	out := make([]database.Statement, len(tx.operations))
	copy(out, tx.operations)
	return out
}

// Duration returns the time since Begin, or the total time once the
// transaction has ended. It is zero before Begin.
func (tx *Tx) Duration() time.Duration {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	switch {
	case tx.startedAt.IsZero():
		return 0
	case tx.endedAt.IsZero():
		return time.Since(tx.startedAt)
	default:
		return tx.endedAt.Sub(tx.startedAt)
	}
}

// Begin moves a pending transaction to active.
func (tx *Tx) Begin() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.require("begin", StatePending); err != nil {
		return err
	}
	tx.state = StateActive
	tx.startedAt = time.Now()
	return nil
}

// Prepare appends a bound statement to the pending batch. The database is
// not contacted.
func (tx *Tx) Prepare(sql string, args ...any) (Handle, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.require("prepare", StateActive); err != nil {
		return Handle{}, err
	}
	tx.operations = append(tx.operations, tx.conn.Prepare(sql).Bind(args...))
	return Handle{index: len(tx.operations) - 1, sql: sql}, nil
}

// Savepoint records the current batch length under name. Reusing a name
// moves it.
func (tx *Tx) Savepoint(name string) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.require("savepoint", StateActive); err != nil {
		return err
	}
	for i, sp := range tx.savepoints {
		if sp.name == name {
			tx.savepoints = append(tx.savepoints[:i], tx.savepoints[i+1:]...)
			break
		}
	}
	tx.savepoints = append(tx.savepoints, savepoint{name: name, index: len(tx.operations)})
	return nil
}

// RollbackToSavepoint truncates the batch to the length recorded by name.
// Savepoints recorded after name are discarded; name itself stays usable.
func (tx *Tx) RollbackToSavepoint(name string) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.require("rollback to savepoint", StateActive); err != nil {
		return err
	}
	for i := len(tx.savepoints) - 1; i >= 0; i-- {
		sp := tx.savepoints[i]
		if sp.name != name {
			continue
		}
		if sp.index < len(tx.operations) {
			clear(tx.operations[sp.index:])
			tx.operations = tx.operations[:sp.index]
		}
		tx.savepoints = tx.savepoints[:i+1]
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownSavepoint, name)
}

// Commit sends the pending batch once. On success the state is committed;
// on failure it is failed and the error is returned. An empty batch commits
// without contacting the database.
func (tx *Tx) Commit(ctx context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.require("commit", StateActive); err != nil {
		return err
	}

	stmts := make([]database.Statement, len(tx.operations))
	copy(stmts, tx.operations)

	ctx, op := observability.StartOperation(ctx, observability.SpanTxCommit, "tx.commit")
	op.SetAttributes(
		attribute.String("tx.id", tx.id),
		attribute.Int("tx.operations", len(stmts)),
	)

	var err error
	if len(stmts) > 0 {
		_, err = database.Execute(ctx, tx.executor.Once(), tx.conn, "tx.commit",
			func(ctx context.Context, _ database.Connection) ([]database.Result, error) {
				return tx.conn.Batch(ctx, stmts)
			})
	}
	tx.endedAt = time.Now()

	if err != nil {
		tx.state = StateFailed
		op.End("failed", err)
		tx.metrics.RecordTransaction(ctx, string(StateFailed))
		return err
	}

	tx.state = StateCommitted
	tx.operations = nil
	tx.savepoints = nil
	op.End(string(StateCommitted), nil)
	tx.metrics.RecordTransaction(ctx, string(StateCommitted))
	tx.log.Debug("transaction committed", map[string]interface{}{
		"transaction_id":     tx.id,
		"operations":         len(stmts),
		logger.FieldDuration: tx.endedAt.Sub(tx.startedAt).Milliseconds(),
	})
	return nil
}

// Rollback discards the pending batch without sending anything. It is
// allowed from active and failed.
func (tx *Tx) Rollback() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.require("rollback", StateActive, StateFailed); err != nil {
		return err
	}
	tx.operations = nil
	tx.savepoints = nil
	tx.state = StateRolledBack
	if tx.endedAt.IsZero() {
		tx.endedAt = time.Now()
	}
	tx.metrics.RecordTransaction(context.Background(), string(StateRolledBack))
	return nil
}

func (tx *Tx) require(op string, allowed ...State) error {
	for _, s := range allowed {
		if tx.state == s {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot %s from %s", ErrInvalidState, op, tx.state)
}
