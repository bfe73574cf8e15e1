package store

import (
	"context"
	"testing"

	"edureg/internal/platform/sqlite"
)

// setupTestDB creates a named shared in-memory SQLite database with the registry schema.
// A unique name derived from t.Name() ensures isolation between tests.
func setupTestDB(t *testing.T) *sqlite.DB {
	t.Helper()

	db, err := sqlite.OpenMemory(context.Background(), t.Name())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		t.Fatalf("run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}
