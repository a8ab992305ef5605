// Package batch runs a full typology batch: it records the run, writes the
// output tables and the failure report, and publishes them.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"census-typology/internal/domain"
	"census-typology/internal/publish"
	"census-typology/internal/service/typology"
	"census-typology/internal/tablefile"
)

// Output file names.
const (
	FileDisaggregated = "typologies_disaggregated.csv"
	FileSummary       = "typologies_summary.csv"
	FileReport        = "report.json"
)

// Job describes one batch.
type Job struct {
	Municipalities []domain.Municipality
	MappingPath    string
	InventoryPath  string
	BlockMode      bool
	OutputDir      string
	Storeys        bool // also write storey-aggregated tables
	Dominant       bool // also write dominant-typology tables
}

// Processor runs the typology engine over a list of municipalities.
type Processor interface {
	Run(ctx context.Context, municipalities []domain.Municipality) (*typology.Result, error)
}

// Outcome is what a batch produced.
type Outcome struct {
	Run    *domain.Run
	Result *typology.Result
	Files  []string
}

// Runner executes batches.
type Runner struct {
	proc      Processor
	runs      domain.RunRepository
	publisher domain.Publisher // nil disables publishing
	logger    *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(proc Processor, runs domain.RunRepository, publisher domain.Publisher, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{proc: proc, runs: runs, publisher: publisher, logger: logger}
}

// Execute runs job to completion. Outputs are written even when the engine
// stops with a fatal error, so the partial tables and the failure report can
// be inspected; that error is returned alongside the outcome.
func (r *Runner) Execute(ctx context.Context, job Job) (*Outcome, error) {
	run, err := r.runs.Create(ctx, &domain.Run{
		BlockMode:           job.BlockMode,
		MunicipalitiesTotal: len(job.Municipalities),
		MappingPath:         job.MappingPath,
		InventoryPath:       job.InventoryPath,
	})
	if err != nil {
		return nil, fmt.Errorf("record run: %w", err)
	}
	logger := r.logger.With("run_id", run.ID)
	logger.Info("run started", "municipalities", len(job.Municipalities), "block_mode", job.BlockMode)

	res, runErr := r.proc.Run(ctx, job.Municipalities)
	out := &Outcome{Run: run, Result: res}

	var writeErr error
	if res != nil {
		out.Files, writeErr = writeOutputs(job, run, res)
		if writeErr == nil && r.publisher != nil {
			// Publishing must finish even when the batch context was cancelled.
			pubCtx := context.WithoutCancel(ctx)
			if err := publish.PublishFiles(pubCtx, r.publisher, out.Files...); err != nil {
				writeErr = fmt.Errorf("publish outputs: %w", err)
			} else {
				logger.Info("outputs published", "destination", r.publisher.Destination(), "files", len(out.Files))
			}
		}
	}

	finishCtx := context.WithoutCancel(ctx)
	if res != nil {
		if err := r.runs.AddFailures(finishCtx, run.ID, res.Report.Failures); err != nil {
			logger.Warn("record failures", "error", err)
		}
	}
	finish(run, res, errors.Join(runErr, writeErr))
	if err := r.runs.Finish(finishCtx, run); err != nil {
		logger.Warn("record run result", "error", err)
	}

	logger.Info("run finished",
		"status", run.Status,
		"processed", run.MunicipalitiesDone,
		"failures", run.FailureCount,
		"files", len(out.Files),
	)
	return out, errors.Join(runErr, writeErr)
}

// finish fills the result fields of run.
func finish(run *domain.Run, res *typology.Result, err error) {
	now := time.Now().UTC()
	run.FinishedAt = &now
	if res != nil {
		run.MunicipalitiesDone = res.Processed
		run.DisaggregatedRows = len(res.Disaggregated.Rows)
		run.SummaryRows = len(res.Summary.Rows)
		run.FailureCount = len(res.Report.Failures)
	}
	switch {
	case err != nil:
		run.Status = domain.RunStatusFailed
		msg := err.Error()
		run.ErrorMessage = &msg
	case run.FailureCount > 0:
		run.Status = domain.RunStatusPartial
	default:
		run.Status = domain.RunStatusSuccess
	}
}

type report struct {
	RunID      string           `json:"run_id"`
	Processed  int              `json:"processed"`
	Total      int              `json:"total"`
	Typologies []string         `json:"typologies"`
	Failures   []domain.Failure `json:"failures"`
	Warnings   []domain.Warning `json:"warnings"`
}

type output struct {
	name  string
	table *domain.Table
}

// writeOutputs writes the tables and the report into job.OutputDir and
// returns the written paths.
func writeOutputs(job Job, run *domain.Run, res *typology.Result) ([]string, error) {
	tables := []output{
		{FileDisaggregated, res.Disaggregated},
		{FileSummary, res.Summary},
	}
	if job.Storeys {
		tables = append(tables,
			output{variant(FileDisaggregated, "storeys"), typology.AggregateStoreys(res.Disaggregated)},
			output{variant(FileSummary, "storeys"), typology.AggregateStoreys(res.Summary)},
		)
	}
	if job.Dominant {
		tables = append(tables,
			output{variant(FileDisaggregated, "dominant"), typology.DominantTypology(res.Disaggregated)},
			output{variant(FileSummary, "dominant"), typology.DominantTypology(res.Summary)},
		)
	}

	var files []string
	for _, t := range tables {
		path := filepath.Join(job.OutputDir, t.name)
		if err := tablefile.WriteFile(path, t.table); err != nil {
			return files, err
		}
		files = append(files, path)
	}

	failures := res.Report.Failures
	if failures == nil {
		failures = []domain.Failure{}
	}
	warnings := res.Report.Warnings
	if warnings == nil {
		warnings = []domain.Warning{}
	}
	data, err := json.MarshalIndent(report{
		RunID:      run.ID,
		Processed:  res.Processed,
		Total:      len(job.Municipalities),
		Typologies: res.Summary.Typologies(),
		Failures:   failures,
		Warnings:   warnings,
	}, "", "  ")
	if err != nil {
		return files, fmt.Errorf("encode report: %w", err)
	}
	path := filepath.Join(job.OutputDir, FileReport)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil { //nolint:gosec // report is not secret
		return files, fmt.Errorf("write report: %w", err)
	}
	return append(files, path), nil
}

// variant inserts a suffix before the extension: a.csv -> a_suffix.csv.
func variant(name, suffix string) string {
	ext := filepath.Ext(name)
	return name[:len(name)-len(ext)] + "_" + suffix + ext
}
