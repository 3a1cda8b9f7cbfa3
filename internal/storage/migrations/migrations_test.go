package migrations

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "migrations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigratorRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	m, err := New(SQLite, db)
	require.NoError(t, err)

	applied, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	applied, err = m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)

	var version int64
	require.NoError(t, db.QueryRow("SELECT MAX(version_id) FROM goose_db_version").Scan(&version))
	assert.Equal(t, int64(1), version)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM students").Scan(&count))
	assert.Zero(t, count)
}

func TestMigratorRejectsUnknownDialect(t *testing.T) {
	_, err := New(Dialect("oracle"), openSQLite(t))
	assert.Error(t, err)
}
