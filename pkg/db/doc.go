// Package db connects to PostgreSQL with pgx and applies goose migrations.
//
//	pool, err := db.Connect(ctx, cfg, log)
//	if err != nil {
//		return err
//	}
//	if err := db.Migrate(ctx, pool, pgstore.Migrations, "migrations", cfg.MigrationsTable, log); err != nil {
//		return err
//	}
//
// WithTx wraps a function in a transaction; Healthcheck plugs into the
// readiness endpoint.
package db
