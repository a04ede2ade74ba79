// Package database runs SQL operations with classification-driven retries.
//
// Adapters expose a small statement contract (Connection, Statement, Result)
// and, optionally, AtomicBatcher for all-or-nothing batches. Failures are
// wrapped into *Error at the point of origin and classified as connection,
// timeout, constraint, syntax or unknown. Only connection and timeout
// failures are retried by the Executor:
//
//	exec := database.NewExecutor(database.DefaultExecutorConfig(), log)
//	user, err := database.Execute(ctx, exec, db.Conn(), "users.get",
//	    func(ctx context.Context, conn database.Connection) (User, error) {
//	        var u User
//	        _, err := conn.Prepare("SELECT * FROM users WHERE id = ?").Bind(id).First(ctx, &u)
//	        return u, err
//	    })
//
// Open connects through a GORM dialector; Component wraps it for the
// component registry and defaults to SQLite.
package database
