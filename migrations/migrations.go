// Package migrations embeds the SQL schema and applies it with golang-migrate.
// Applied versions are tracked in the schema_migrations table.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed *.sql
var files embed.FS

// newMigrate builds a migrator on a dedicated connection from db. Closing
// the migrator releases that connection but leaves the pool open.
func newMigrate(ctx context.Context, db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(files, ".")
	if err != nil {
		return nil, err
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		src.Close()
		return nil, err
	}

	driver, err := postgres.WithConnection(ctx, conn, &postgres.Config{})
	if err != nil {
		conn.Close()
		src.Close()
		return nil, err
	}

	return migrate.NewWithInstance("iofs", src, "postgres", driver)
}

// Up applies all pending migrations. An up-to-date schema is not an error.
func Up(ctx context.Context, db *sql.DB) error {
	m, err := newMigrate(ctx, db)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations up: %w", err)
	}
	return nil
}

// Down rolls back every applied migration.
func Down(ctx context.Context, db *sql.DB) error {
	m, err := newMigrate(ctx, db)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations down: %w", err)
	}
	return nil
}

// Version reports the applied schema version and whether the last migration
// failed half way.
func Version(ctx context.Context, db *sql.DB) (uint, bool, error) {
	m, err := newMigrate(ctx, db)
	if err != nil {
		return 0, false, fmt.Errorf("migrations: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}
