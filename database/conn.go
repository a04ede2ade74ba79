package database

import "context"

// Connection prepares statements against a database.
type Connection interface {
	Prepare(sql string) Statement
}

// Statement is a SQL text with bound arguments. Statements are immutable;
// Bind returns a new Statement.
type Statement interface {
	// Bind returns a copy of the statement with args bound.
	Bind(args ...any) Statement
	// First scans the first row into dest and reports whether a row existed.
	First(ctx context.Context, dest any) (bool, error)
	// All scans every row into dest, which must point to a slice.
	All(ctx context.Context, dest any) error
	// Run executes a write.
	Run(ctx context.Context) (Result, error)
	// SQL returns the statement text.
	SQL() string
	// Args returns the bound arguments.
	Args() []any
}

// Result describes the effect of a write.
type Result struct {
	RowsAffected int64 `json:"rows_affected"`
	LastInsertID int64 `json:"last_insert_id,omitempty"`
}

// AtomicBatcher applies a list of bound statements as one all-or-nothing
// unit. It is the only atomicity primitive the transaction package relies on.
type AtomicBatcher interface {
	Batch(ctx context.Context, stmts []Statement) ([]Result, error)
}

// Capabilities describes what an adapter guarantees.
type Capabilities struct {
	// AtomicBatch is true when Batch applies statements all-or-nothing.
	AtomicBatch bool `json:"atomic_batch"`
	// Savepoints is true when the backend supports real nested rollbacks.
	// When false, savepoints are tracked only in the pending batch.
	Savepoints bool `json:"savepoints"`
}

// CapabilityReporter is implemented by adapters that declare their capabilities.
type CapabilityReporter interface {
	Capabilities() Capabilities
}

// CapabilitiesOf returns the capabilities reported by conn, or the zero value.
func CapabilitiesOf(conn any) Capabilities {
	if r, ok := conn.(CapabilityReporter); ok {
		return r.Capabilities()
	}
	return Capabilities{}
}

// SupportsAtomicBatch reports whether conn can apply an atomic batch.
func SupportsAtomicBatch(conn any) bool {
	if _, ok := conn.(AtomicBatcher); !ok {
		return false
	}
	return CapabilitiesOf(conn).AtomicBatch
}
