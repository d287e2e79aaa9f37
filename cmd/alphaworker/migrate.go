package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"
	"github.com/urfave/cli/v3"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/storage/postgres"
)

func migrateCmd() *cli.Command {
	dbFlag := &cli.StringFlag{
		Name:    "database-url",
		Usage:   "PostgreSQL connection string, overrides storage.postgres.url",
		Sources: cli.EnvVars("ALPHASTOCKS_DATABASE_URL"),
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "Run database migrations (postgres only)",
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations",
				Flags: []cli.Flag{dbFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withPool(ctx, cmd, func(pool *pgxpool.Pool, logger arbor.ILogger) error {
						applied, err := postgres.MigrateUp(ctx, pool, logger)
						if err != nil {
							return err
						}
						_, err = fmt.Fprintf(cmd.Root().Writer, "applied %d migration(s)\n", applied)
						return err
					})
				},
			},
			{
				Name:  "down",
				Usage: "Roll back applied migrations",
				Flags: []cli.Flag{
					dbFlag,
					&cli.IntFlag{
						Name:  "steps",
						Usage: "Number of migrations to roll back",
						Value: 1,
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withPool(ctx, cmd, func(pool *pgxpool.Pool, logger arbor.ILogger) error {
						reverted, err := postgres.MigrateDown(ctx, pool, int(cmd.Int("steps")), logger)
						if err != nil {
							return err
						}
						_, err = fmt.Fprintf(cmd.Root().Writer, "rolled back %d migration(s)\n", reverted)
						return err
					})
				},
			},
		},
	}
}

func withPool(ctx context.Context, cmd *cli.Command, fn func(*pgxpool.Pool, arbor.ILogger) error) error {
	cfg, logger, err := loadConfig(ctx, cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if v := cmd.String("database-url"); v != "" {
		cfg.Storage.Postgres.URL = v
	}

	pool, err := postgres.Connect(ctx, &cfg.Storage.Postgres, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(pool, logger)
}
