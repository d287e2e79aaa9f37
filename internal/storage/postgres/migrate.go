package postgres

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type migration struct {
	version int
	name    string
	up      string
	down    string
}

// loadMigrations pairs NNN_name.up.sql with NNN_name.down.sql, ordered by version.
func loadMigrations() ([]migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	byVersion := map[int]*migration{}
	for _, entry := range entries {
		name := entry.Name()
		var direction string
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			direction = "up"
		case strings.HasSuffix(name, ".down.sql"):
			direction = "down"
		default:
			continue
		}

		prefix, rest, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}

		m, ok := byVersion[version]
		if !ok {
			m = &migration{version: version, name: strings.TrimSuffix(strings.TrimSuffix(rest, ".up.sql"), ".down.sql")}
			byVersion[version] = m
		}
		if direction == "up" {
			m.up = "migrations/" + name
		} else {
			m.down = "migrations/" + name
		}
	}

	migrations := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.up == "" {
			return nil, fmt.Errorf("migration %03d has no up file", m.version)
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].version < migrations[j].version })
	return migrations, nil
}

func ensureMigrationsTable(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("create migrations table: %w", err)
	}

	var current int
	if err := pool.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return 0, fmt.Errorf("get current version: %w", err)
	}
	return current, nil
}

// MigrateUp applies every migration newer than the recorded version.
// Returns the number applied.
func MigrateUp(ctx context.Context, pool *pgxpool.Pool, logger arbor.ILogger) (int, error) {
	current, err := ensureMigrationsTable(ctx, pool)
	if err != nil {
		return 0, err
	}
	migrations, err := loadMigrations()
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := applyMigration(ctx, pool, m.version, m.up, "INSERT INTO schema_migrations (version) VALUES ($1)"); err != nil {
			return applied, err
		}
		applied++
		logger.Info().Int("version", m.version).Str("name", m.name).Msg("Applied migration")
	}
	return applied, nil
}

// MigrateDown reverts the newest steps migrations. Returns the number reverted.
func MigrateDown(ctx context.Context, pool *pgxpool.Pool, steps int, logger arbor.ILogger) (int, error) {
	current, err := ensureMigrationsTable(ctx, pool)
	if err != nil {
		return 0, err
	}
	migrations, err := loadMigrations()
	if err != nil {
		return 0, err
	}

	reverted := 0
	for i := len(migrations) - 1; i >= 0 && reverted < steps; i-- {
		m := migrations[i]
		if m.version > current {
			continue
		}
		if m.down == "" {
			return reverted, fmt.Errorf("migration %03d has no down file", m.version)
		}
		if err := applyMigration(ctx, pool, m.version, m.down, "DELETE FROM schema_migrations WHERE version = $1"); err != nil {
			return reverted, err
		}
		reverted++
		logger.Info().Int("version", m.version).Str("name", m.name).Msg("Reverted migration")
	}
	return reverted, nil
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool, version int, file, record string) error {
	sql, err := migrationsFS.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", file, err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx for migration %d: %w", version, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("apply migration %d: %w", version, err)
	}
	if _, err := tx.Exec(ctx, record, version); err != nil {
		return fmt.Errorf("record migration %d: %w", version, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %d: %w", version, err)
	}
	return nil
}
