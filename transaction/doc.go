// Package transaction buffers SQL statements and applies them as one atomic
// batch.
//
// A Tx moves from pending to active on Begin and ends committed, rolled back
// or failed. Prepare, Savepoint and RollbackToSavepoint only edit the
// in-memory batch; Commit sends it once through database.AtomicBatcher and
// never re-sends a failed batch.
//
//	total, err := transaction.WithTransaction(ctx, db.Conn(),
//	    func(ctx context.Context, tx *transaction.Tx) (int64, error) {
//	        tx.Prepare("UPDATE accounts SET balance = balance - ? WHERE id = ?", amount, from)
//	        tx.Prepare("UPDATE accounts SET balance = balance + ? WHERE id = ?", amount, to)
//	        return amount, nil
//	    }, transaction.DefaultConfig())
//
// WithRetryableTransaction re-runs the whole unit of work when the failure
// is a deadlock.
package transaction
