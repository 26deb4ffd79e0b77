package archive

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"grid-trading-lab/internal/config"
	chstore "grid-trading-lab/internal/storage/clickhouse"
	"grid-trading-lab/internal/storage/migrations"
	pgstore "grid-trading-lab/internal/storage/postgres"
)

// OpenStores connects the stores named by cfg.
// Without a Postgres DSN everything is kept in memory. With Postgres but
// no ClickHouse DSN the time series are not archived.
// The returned cleanup closes every opened connection.
func OpenStores(ctx context.Context, cfg config.StorageConfig, logger logrus.FieldLogger) (Stores, func(), error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.PostgresDSN == "" {
		logger.Info("using in-memory archive stores")
		return MemoryStores(), func() {}, nil
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return Stores{}, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	closers = append(closers, pool.Close)

	if cfg.Migrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			cleanup()
			return Stores{}, nil, fmt.Errorf("postgres migrations: %w", err)
		}
	}

	stores := Stores{
		Sessions:   pgstore.NewSessionStore(pool),
		Grids:      pgstore.NewGridStore(pool),
		Executions: pgstore.NewExecutionStore(pool),
	}

	if cfg.ClickHouseDSN == "" {
		logger.Warn("no clickhouse dsn, tick and equity series will not be archived")
		return stores, cleanup, nil
	}

	var conn *chstore.Conn
	if cfg.Migrate {
		conn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
	} else {
		conn, err = chstore.NewConn(ctx, cfg.ClickHouseDSN)
	}
	if err != nil {
		cleanup()
		return Stores{}, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	closers = append(closers, func() { _ = conn.Close() })

	stores.Ticks = chstore.NewPriceTickStore(conn)
	stores.Values = chstore.NewValueSeriesStore(conn)
	return stores, cleanup, nil
}
