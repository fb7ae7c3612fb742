package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var snapshotMigrations embed.FS

// ErrDirtySchema is returned when a previous migration stopped half way and
// the snapshot table needs manual repair.
var ErrDirtySchema = errors.New("snapshot schema is dirty")

// RunMigrations brings the snapshot schema at dbPath up to date and returns
// the resulting schema version. It opens its own connection because closing
// the migrator closes the database handle it was given.
func RunMigrations(dbPath string) (uint, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, fmt.Errorf("open migration database: %w", err)
	}
	defer conn.Close()

	target, err := sqlite.WithInstance(conn, &sqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("sqlite migration driver: %w", err)
	}
	source, err := iofs.New(snapshotMigrations, "migrations")
	if err != nil {
		return 0, fmt.Errorf("embedded migrations: %w", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", source, "sqlite", target)
	if err != nil {
		return 0, fmt.Errorf("create migrator: %w", err)
	}
	defer migrator.Close()

	if _, dirty, err := migrator.Version(); err == nil && dirty {
		return 0, fmt.Errorf("%s: %w", dbPath, ErrDirtySchema)
	}

	switch err := migrator.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
	case err != nil:
		return 0, fmt.Errorf("apply migrations: %w", err)
	default:
		slog.Info("Applied snapshot migrations", "path", dbPath)
	}

	version, _, err := migrator.Version()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}
