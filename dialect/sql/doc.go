// Package sql runs generated repositories on database/sql.
//
// Generated implementations only need a daogen.DB, which *sql.DB and
// *sql.Tx already satisfy. Driver adds what an application usually wants
// around them: the dialect name, scoped transactions and statement
// statistics.
//
//	drv, err := sql.Open(dialect.Postgres, dsn)
//	if err != nil {
//	    return err
//	}
//	users := store.NewUserStore(drv)
//
// # Transactions
//
// WithTx runs a function inside a transaction and commits when it returns
// nil. Repositories built on the *sql.Tx share it:
//
//	err := drv.WithTx(ctx, nil, func(tx *sql.Tx) error {
//	    users := store.NewUserStore(tx)
//	    ...
//	})
//
// # Statistics
//
// NewStatsDriver counts prepared statements and reports slow ones:
//
//	stats := sql.NewStatsDriver(drv,
//	    sql.WithSlowThreshold(200*time.Millisecond),
//	    sql.WithSlowQueryLog(logger),
//	)
//	users := store.NewUserStore(stats)
package sql
