package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

// RunMigrations applies pending goose migrations to the ledger.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(EmbedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("migrate ledger: %w", err)
	}
	return nil
}
