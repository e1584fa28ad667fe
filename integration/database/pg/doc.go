// Package pg provides PostgreSQL connection management with migrations and health checking.
//
// Connect builds a pgx connection pool from Config and verifies it with a ping,
// retrying with exponential backoff (github.com/sethvargo/go-retry) so the
// faucet can start alongside its database.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
// Migrate applies goose migrations from any fs.FS. The queue package ships
// the migrations for its task table:
//
//	if err := pg.Migrate(ctx, pool, queue.Migrations, queue.MigrationsDir, logger); err != nil {
//		return err
//	}
//
// Healthcheck returns a ping function suitable for readiness probes.
//
// # Transactions
//
// WithTx attaches a pgx.Tx to a context and TxFromContext retrieves it.
// Storage implementations check the context so that writes issued by
// different layers join the caller's transaction.
//
// # Error classification
//
//	pg.IsNotFoundError(err)     // pgx.ErrNoRows
//	pg.IsDuplicateKeyError(err) // unique constraint violation
package pg
