package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/common"
)

// Connect creates a connection pool to PostgreSQL.
func Connect(ctx context.Context, config *common.PostgresConfig, logger arbor.ILogger) (*pgxpool.Pool, error) {
	if config.URL == "" {
		return nil, &common.ConfigurationError{Field: "storage.postgres.url"}
	}

	cfg, err := pgxpool.ParseConfig(config.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if config.MaxConnections > 0 {
		cfg.MaxConns = config.MaxConnections
	}
	cfg.ConnConfig.RuntimeParams["application_name"] = "alphaworker"
	if d := common.ParseDurationOr(config.StatementTimeout, 0); d > 0 {
		// Plain integers are milliseconds to Postgres
		cfg.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(d.Milliseconds(), 10)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Debug().
		Str("host", cfg.ConnConfig.Host).
		Str("database", cfg.ConnConfig.Database).
		Int("max_conns", int(cfg.MaxConns)).
		Msg("Postgres pool initialized")

	return pool, nil
}
