// Package migrations applies the embedded SQL schema for the relational
// backends using goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

// Dialect selects the schema directory and the goose dialect.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) goose() (goose.Dialect, error) {
	switch d {
	case SQLite:
		return goose.DialectSQLite3, nil
	case Postgres:
		return goose.DialectPostgres, nil
	default:
		return "", fmt.Errorf("unsupported migration dialect %q", d)
	}
}

// Migrator wraps a goose provider bound to one database.
type Migrator struct {
	provider *goose.Provider
}

// New builds a Migrator for db. The caller keeps ownership of db.
func New(dialect Dialect, db *sql.DB) (*Migrator, error) {
	gooseDialect, err := dialect.goose()
	if err != nil {
		return nil, err
	}

	fsys, err := fs.Sub(files, string(dialect))
	if err != nil {
		return nil, fmt.Errorf("open %s migrations: %w", dialect, err)
	}

	provider, err := goose.NewProvider(gooseDialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("create goose provider: %w", err)
	}

	return &Migrator{provider: provider}, nil
}

// Run applies all pending migrations and returns how many were applied.
func (m *Migrator) Run(ctx context.Context) (int, error) {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}
	return len(results), nil
}

// Apply is the one-call form used by the stores at startup.
func Apply(ctx context.Context, dialect Dialect, db *sql.DB) error {
	m, err := New(dialect, db)
	if err != nil {
		return err
	}
	_, err = m.Run(ctx)
	return err
}
