// Package repository implements domain repository interfaces using SQLite.
package repository

import (
	"database/sql"
	"errors"

	"census-typology/internal/domain"
)

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func mapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.NotFoundError{Message: "resource not found"}
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
