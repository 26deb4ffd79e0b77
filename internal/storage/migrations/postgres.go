package migrations

import (
	"context"
	"fmt"

	"grid-trading-lab/internal/storage/postgres"
)

// RunPostgresMigrations creates the sessions, grids and executions tables.
// Every file uses IF NOT EXISTS, so reruns are safe.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := readMigrations(PostgresFS, "postgres")
	if err != nil {
		return err
	}
	for _, m := range files {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("apply postgres migration %s: %w", m.name, err)
		}
	}
	return nil
}
