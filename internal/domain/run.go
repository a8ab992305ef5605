package domain

import (
	"context"
	"errors"
	"io"
	"time"
)

// Run status constants.
const (
	RunStatusRunning = "RUNNING"
	RunStatusSuccess = "SUCCESS"
	RunStatusPartial = "PARTIAL" // finished with failures recorded
	RunStatusFailed  = "FAILED"
)

// Failure kinds, one per error class of the engine.
const (
	FailureDataLookup    = "DATA_LOOKUP"
	FailureDataIntegrity = "DATA_INTEGRITY"
	FailureConfiguration = "CONFIGURATION"
	FailureOther         = "OTHER"
)

// FailureKind classifies an error into one of the failure kinds.
func FailureKind(err error) string {
	var lookup *DataLookupError
	var integrity *DataIntegrityError
	var cfg *ConfigurationError
	switch {
	case errors.As(err, &lookup):
		return FailureDataLookup
	case errors.As(err, &integrity):
		return FailureDataIntegrity
	case errors.As(err, &cfg):
		return FailureConfiguration
	default:
		return FailureOther
	}
}

// Failure is one caught error, attributed to the municipality (and, when
// known, the combination and block) whose source data caused it.
type Failure struct {
	Kind         string       `json:"kind"`
	Municipality int          `json:"municipality"`
	Combination  *Combination `json:"combination,omitempty"`
	Block        *BlockKey    `json:"block,omitempty"`
	Message      string       `json:"message"`
}

// Warning is a data-quality observation that does not stop processing.
type Warning struct {
	Municipality int          `json:"municipality,omitempty"`
	Combination  *Combination `json:"combination,omitempty"`
	Message      string       `json:"message"`
}

// Report collects the failures and warnings of a batch.
type Report struct {
	Failures []Failure `json:"failures"`
	Warnings []Warning `json:"warnings"`
}

// Merge appends other's entries to r.
func (r *Report) Merge(other Report) {
	r.Failures = append(r.Failures, other.Failures...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// Run is one recorded batch execution.
type Run struct {
	ID                  string     `json:"id"`
	Status              string     `json:"status"`
	BlockMode           bool       `json:"block_mode"`
	MunicipalitiesTotal int        `json:"municipalities_total"`
	MunicipalitiesDone  int        `json:"municipalities_done"`
	DisaggregatedRows   int        `json:"disaggregated_rows"`
	SummaryRows         int        `json:"summary_rows"`
	FailureCount        int        `json:"failure_count"`
	MappingPath         string     `json:"mapping_path"`
	InventoryPath       string     `json:"inventory_path"`
	ErrorMessage        *string    `json:"error_message,omitempty"`
	StartedAt           time.Time  `json:"started_at"`
	FinishedAt          *time.Time `json:"finished_at,omitempty"`
}

// RunRepository persists batch runs and their failure reports.
type RunRepository interface {
	Create(ctx context.Context, r *Run) (*Run, error)
	Finish(ctx context.Context, r *Run) error
	AddFailures(ctx context.Context, runID string, failures []Failure) error
	GetByID(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context, limit int) ([]Run, error)
	ListFailures(ctx context.Context, runID string) ([]Failure, error)
}

// Publisher copies a finished output file to its destination.
type Publisher interface {
	Publish(ctx context.Context, name string, r io.Reader) error
	Destination() string
}
