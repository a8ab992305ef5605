package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"census-typology/internal/domain"
)

var _ domain.RunRepository = (*RunRepo)(nil)

// RunRepo records batch runs and their failure reports in SQLite.
type RunRepo struct {
	db *sql.DB
}

// NewRunRepo creates a new RunRepo.
func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db}
}

const runColumns = `id, status, block_mode, municipalities_total, municipalities_done,
	disaggregated_rows, summary_rows, failure_count, mapping_path, inventory_path,
	error_message, started_at, finished_at`

// Create inserts a new run in RUNNING state.
func (r *RunRepo) Create(ctx context.Context, run *domain.Run) (*domain.Run, error) {
	if run == nil {
		return nil, domain.ErrValidation("run is required")
	}
	if run.ID == "" {
		run.ID = domain.NewID()
	}
	if run.Status == "" {
		run.Status = domain.RunStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (id, status, block_mode, municipalities_total, mapping_path, inventory_path, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Status, boolToInt(run.BlockMode), run.MunicipalitiesTotal,
		run.MappingPath, run.InventoryPath, run.StartedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	return r.GetByID(ctx, run.ID)
}

// Finish stores the final state of a run.
func (r *RunRepo) Finish(ctx context.Context, run *domain.Run) error {
	finished := time.Now().UTC()
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}
	var msg sql.NullString
	if run.ErrorMessage != nil {
		msg = sql.NullString{String: *run.ErrorMessage, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, municipalities_done = ?, disaggregated_rows = ?, summary_rows = ?,
		    failure_count = ?, error_message = ?, finished_at = ?
		WHERE id = ?
	`, run.Status, run.MunicipalitiesDone, run.DisaggregatedRows, run.SummaryRows,
		run.FailureCount, msg, finished, run.ID)
	if err != nil {
		return mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound("run %q not found", run.ID)
	}
	return nil
}

// AddFailures appends failure records to a run in one transaction.
func (r *RunRepo) AddFailures(ctx context.Context, runID string, failures []domain.Failure) error {
	if len(failures) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_failures (run_id, kind, municipality, wall_material, floor_material, dwelling_use, block_json, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close() //nolint:errcheck

	for _, f := range failures {
		var wall, floor, use sql.NullString
		if f.Combination != nil {
			wall = nullString(f.Combination.Wall)
			floor = nullString(f.Combination.Floor)
			use = nullString(string(f.Combination.Use))
		}
		var block sql.NullString
		if f.Block != nil {
			b, err := json.Marshal(f.Block)
			if err != nil {
				return fmt.Errorf("marshal block: %w", err)
			}
			block = sql.NullString{String: string(b), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, runID, f.Kind, f.Municipality, wall, floor, use, block, f.Message); err != nil {
			return mapDBError(err)
		}
	}
	return tx.Commit()
}

// GetByID returns a run by ID.
func (r *RunRepo) GetByID(ctx context.Context, id string) (*domain.Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound("run %q not found", id)
		}
		return nil, mapDBError(err)
	}
	return run, nil
}

// List returns the most recent runs, newest first.
func (r *RunRepo) List(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

// ListFailures returns the failures recorded for a run, in insertion order.
func (r *RunRepo) ListFailures(ctx context.Context, runID string) ([]domain.Failure, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, municipality, wall_material, floor_material, dwelling_use, block_json, message
		FROM run_failures WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.Failure
	for rows.Next() {
		var (
			f                           domain.Failure
			wall, floor, use, blockJSON sql.NullString
		)
		if err := rows.Scan(&f.Kind, &f.Municipality, &wall, &floor, &use, &blockJSON, &f.Message); err != nil {
			return nil, err
		}
		if wall.Valid || floor.Valid || use.Valid {
			f.Combination = &domain.Combination{Wall: wall.String, Floor: floor.String, Use: domain.DwellingUse(use.String)}
		}
		if blockJSON.Valid {
			var b domain.BlockKey
			if err := json.Unmarshal([]byte(blockJSON.String), &b); err != nil {
				return nil, fmt.Errorf("unmarshal block: %w", err)
			}
			f.Block = &b
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*domain.Run, error) {
	var (
		run        domain.Run
		blockMode  int64
		errMessage sql.NullString
		finishedAt sql.NullTime
	)
	err := s.Scan(
		&run.ID,
		&run.Status,
		&blockMode,
		&run.MunicipalitiesTotal,
		&run.MunicipalitiesDone,
		&run.DisaggregatedRows,
		&run.SummaryRows,
		&run.FailureCount,
		&run.MappingPath,
		&run.InventoryPath,
		&errMessage,
		&run.StartedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}
	run.BlockMode = blockMode != 0
	if errMessage.Valid {
		msg := errMessage.String
		run.ErrorMessage = &msg
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return &run, nil
}
