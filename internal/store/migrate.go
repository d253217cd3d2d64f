package store

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrateResult reports the schema version after a run.
type MigrateResult struct {
	Version uint
	Dirty   bool
}

// Migrate applies the embedded schema. direction is "up" or "down"; steps
// of 0 means all the way.
func Migrate(dsn, direction string, steps int) (MigrateResult, error) {
	if direction != "up" && direction != "down" {
		return MigrateResult{}, fmt.Errorf("invalid direction %q (use up or down)", direction)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return MigrateResult{}, fmt.Errorf("open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, driverURL(dsn))
	if err != nil {
		return MigrateResult{}, fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	switch direction {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	default:
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return MigrateResult{}, fmt.Errorf("migrate %s: %w", direction, err)
	}

	v, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return MigrateResult{}, fmt.Errorf("read version: %w", err)
	}
	return MigrateResult{Version: v, Dirty: dirty}, nil
}

// driverURL rewrites a postgres:// DSN to the pgx5:// scheme the migrate
// driver registers.
func driverURL(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(dsn, prefix); ok {
			return "pgx5://" + rest
		}
	}
	return dsn
}
