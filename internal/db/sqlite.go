// Package db opens the run ledger and applies its migrations.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite DSN parameters.
const (
	busyTimeout = "5000" // milliseconds
	synchronous = "NORMAL"
	journalMode = "WAL"
)

// OpenSQLite opens the ledger database at path, creating its directory.
// The ledger is written by one batch at a time, so the pool holds a single
// connection and transactions take the write lock up front.
func OpenSQLite(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", buildDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

func buildDSN(path string) string {
	params := url.Values{}
	params.Set("_journal_mode", journalMode)
	params.Set("_busy_timeout", busyTimeout)
	params.Set("_synchronous", synchronous)
	params.Set("_foreign_keys", "on")
	params.Set("_txlock", "immediate")
	return path + "?" + params.Encode()
}

// OpenLedger opens the ledger and brings its schema up to date.
func OpenLedger(ctx context.Context, path string) (*sql.DB, error) {
	db, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
