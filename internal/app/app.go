// Package app provides application-level wiring for the typology engine:
// it loads the batch inputs, opens the run ledger and assembles the
// services the CLI drives.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"census-typology/internal/config"
	"census-typology/internal/db"
	"census-typology/internal/db/repository"
	"census-typology/internal/domain"
	"census-typology/internal/engine"
	"census-typology/internal/publish"
	"census-typology/internal/reference"
	"census-typology/internal/scheme"
	"census-typology/internal/service/batch"
	"census-typology/internal/service/typology"
	"census-typology/internal/workbook"
)

// Deps holds what main() must provide.
type Deps struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

// Inputs are the loaded inputs of a batch.
type Inputs struct {
	Scheme         *domain.Scheme
	Resolver       *scheme.Resolver
	Counts         *engine.CountStore
	Municipalities []domain.Municipality // selected for processing, in reference order
}

// Close releases the inventory engine.
func (in *Inputs) Close() error {
	if in.Counts == nil {
		return nil
	}
	return in.Counts.Close()
}

// Codes returns the selected municipality codes.
func (in *Inputs) Codes() []int {
	out := make([]int, len(in.Municipalities))
	for i, m := range in.Municipalities {
		out[i] = m.Code
	}
	return out
}

// LoadInputs validates the configuration and loads the classification
// workbook, the municipality list and the inventory. Every failure here is
// a ConfigurationError or DataIntegrityError raised before processing.
func LoadInputs(ctx context.Context, deps Deps) (*Inputs, error) {
	cfg := deps.Cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s, err := workbook.Load(cfg.Mapping, cfg.Sheets)
	if err != nil {
		return nil, err
	}
	deps.Logger.Info("classification workbook loaded",
		"path", cfg.Mapping,
		"locales", len(s.Locales),
		"typologies", len(s.Typologies()))

	all, err := reference.Load(cfg.Municipalities)
	if err != nil {
		return nil, err
	}
	departments, err := cfg.DepartmentCodes()
	if err != nil {
		return nil, err
	}
	selected := reference.Select(all, departments, cfg.Exclude)
	if len(selected) == 0 {
		return nil, domain.ErrConfiguration("no municipalities selected from %s", cfg.Municipalities)
	}

	counts, err := engine.Open(ctx, cfg.EngineOptions(), deps.Logger.With("component", "engine"))
	if err != nil {
		return nil, err
	}

	return &Inputs{
		Scheme:         s,
		Resolver:       scheme.NewResolver(s),
		Counts:         counts,
		Municipalities: selected,
	}, nil
}

// OpenRuns opens the run ledger and returns its repository.
func OpenRuns(ctx context.Context, cfg *config.Config) (*repository.RunRepo, *sql.DB, error) {
	ledger, err := db.OpenLedger(ctx, cfg.LedgerPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open run ledger: %w", err)
	}
	return repository.NewRunRepo(ledger), ledger, nil
}

// App is a fully wired batch.
type App struct {
	Inputs    *Inputs
	Service   *typology.Service
	Runner    *batch.Runner
	Runs      *repository.RunRepo
	Publisher domain.Publisher // nil when no publish URL is configured

	cfg    *config.Config
	ledger *sql.DB
}

// New loads the inputs and wires the typology service, the run ledger and
// the publisher.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg

	inputs, err := LoadInputs(ctx, deps)
	if err != nil {
		return nil, err
	}

	runs, ledger, err := OpenRuns(ctx, cfg)
	if err != nil {
		_ = inputs.Close()
		return nil, err
	}

	var pub domain.Publisher
	if cfg.PublishURL != "" {
		pub, err = publish.New(ctx, cfg.PublishURL, cfg.PublishCredentials())
		if err != nil {
			_ = inputs.Close()
			_ = ledger.Close()
			return nil, err
		}
	}

	svc := typology.NewService(inputs.Resolver, inputs.Counts, typology.Options{
		BlockMode: cfg.BlockMode,
		FailFast:  cfg.FailFast,
		Workers:   cfg.Workers,
	}, deps.Logger.With("component", "typology"))

	return &App{
		Inputs:    inputs,
		Service:   svc,
		Runner:    batch.NewRunner(svc, runs, pub, deps.Logger.With("component", "batch")),
		Runs:      runs,
		Publisher: pub,
		cfg:       cfg,
		ledger:    ledger,
	}, nil
}

// Job returns the batch described by the configuration.
func (a *App) Job() batch.Job {
	return batch.Job{
		Municipalities: a.Inputs.Municipalities,
		MappingPath:    a.cfg.Mapping,
		InventoryPath:  a.cfg.Inventory,
		BlockMode:      a.cfg.BlockMode,
		OutputDir:      a.cfg.OutputDir,
		Storeys:        a.cfg.Storeys,
		Dominant:       a.cfg.Dominant,
	}
}

// Close releases the engine, the ledger and the publisher.
func (a *App) Close() error {
	errs := []error{a.Inputs.Close(), a.ledger.Close()}
	if c, ok := a.Publisher.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
