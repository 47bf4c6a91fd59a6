package testutil

import (
	"database/sql"
	"testing"

	"notebook-server/internal/repository/migrations"

	_ "github.com/mattn/go-sqlite3"
)

// NewTestDB opens an in-memory SQLite database with every migration applied.
// It is closed when the test completes.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	if err := migrations.MigrateUp(db, migrations.DialectSQLite); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return db
}
