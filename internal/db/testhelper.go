package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

// OpenTestSQLite opens a migrated ledger in t.TempDir() and registers
// cleanup.
func OpenTestSQLite(t *testing.T) *sql.DB {
	t.Helper()

	db, err := OpenLedger(context.Background(), filepath.Join(t.TempDir(), "ledger.sqlite"))
	if err != nil {
		t.Fatalf("open test ledger: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
