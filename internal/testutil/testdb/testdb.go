// Package testdb provides a migrated in-memory history database for tests.
// It lives apart from testutil so parser tests can use testutil without
// pulling in the database and service packages.
package testdb

import (
	"testing"

	"wadlib/internal/database"
	"wadlib/internal/wadlib"
)

// NewTestDatabase creates a new in-memory SQLite database with migrations applied.
// The database is automatically closed when the test completes.
func NewTestDatabase(t *testing.T, clock wadlib.Clock) wadlib.Database {
	t.Helper()

	db, err := database.NewSQLiteDatabase(":memory:", clock)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		t.Fatalf("failed to migrate database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
