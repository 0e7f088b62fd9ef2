package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"p2p-exchange/internal/adapter/storage/postgres/migrations"

	"github.com/golang-migrate/migrate/v4"
	pgxv5 "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/rs/zerolog"
)

// MigrateUp applies every pending embedded migration.
func MigrateUp(ctx context.Context, dsn string, log zerolog.Logger) error {
	return withMigrator(ctx, dsn, log, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				log.Info().Msg("database migrations up-to-date")
				return nil
			}
			return fmt.Errorf("apply migrations: %w", err)
		}
		log.Info().Msg("database migrations applied")
		return nil
	})
}

// MigrateDown rolls back the given number of migrations.
func MigrateDown(ctx context.Context, dsn string, steps int, log zerolog.Logger) error {
	if steps <= 0 {
		return fmt.Errorf("rollback steps must be positive, got %d", steps)
	}
	return withMigrator(ctx, dsn, log, func(m *migrate.Migrate) error {
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("rollback migrations: %w", err)
		}
		log.Info().Int("steps", steps).Msg("database migrations rolled back")
		return nil
	})
}

func withMigrator(ctx context.Context, dsn string, log zerolog.Logger, fn func(*migrate.Migrate) error) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migrations connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping migrations database: %w", err)
	}

	driver, err := pgxv5.WithInstance(db, &pgxv5.Config{})
	if err != nil {
		return fmt.Errorf("initialise pgx v5 driver: %w", err)
	}

	source, err := iofs.New(migrations.Files, ".")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("initialise migrate instance: %w", err)
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Warn().AnErr("source_err", sourceErr).AnErr("db_err", dbErr).Msg("closing migrator")
		}
	}()

	return fn(m)
}
