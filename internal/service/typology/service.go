// Package typology distributes building counts over seismic typologies.
package typology

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"

	"census-typology/internal/apportion"
	"census-typology/internal/domain"
	"census-typology/internal/scheme"
)

// Options controls a batch.
type Options struct {
	BlockMode bool // process each census block separately
	FailFast  bool // abort the batch on the first failure
	Workers   int  // municipalities processed concurrently (default 1)
}

// Service runs the distribution engine over municipalities.
type Service struct {
	resolver *scheme.Resolver
	counts   domain.CountSource
	opts     Options
	logger   *slog.Logger
}

// NewService creates a new Service.
func NewService(resolver *scheme.Resolver, counts domain.CountSource, opts Options, logger *slog.Logger) *Service {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		resolver: resolver,
		counts:   counts,
		opts:     opts,
		logger:   logger,
	}
}

// Partial is the output of one municipality pass.
type Partial struct {
	Municipality  domain.Municipality
	Disaggregated []domain.Row
	Summary       []domain.Row
	Report        domain.Report
}

// Result is the folded output of a batch.
type Result struct {
	Disaggregated *domain.Table
	Summary       *domain.Table
	Report        domain.Report
	Processed     int // municipalities that produced a summary row
}

// DisaggregatedLayout returns the empty disaggregated table for this service.
func (s *Service) DisaggregatedLayout() *domain.Table {
	keys := []string{domain.ColMunicipalityCode, domain.ColMunicipalityName}
	if s.opts.BlockMode {
		keys = append(keys, domain.BlockKeyColumns...)
	}
	keys = append(keys, domain.ColWallMaterial, domain.ColFloorMaterial, domain.ColDwellingUse)

	pass := s.counts.PassThroughColumns()
	values := make([]string, 0, 1+len(pass)+len(s.resolver.Typologies()))
	values = append(values, domain.ColBuildings)
	values = append(values, pass...)
	values = append(values, s.resolver.Typologies()...)
	return &domain.Table{KeyColumns: keys, ValueColumns: values, TypologyStart: 1 + len(pass)}
}

// SummaryLayout returns the empty summary table for this service.
func (s *Service) SummaryLayout() *domain.Table {
	return &domain.Table{
		KeyColumns:   []string{domain.ColMunicipalityCode, domain.ColMunicipalityName},
		ValueColumns: append([]string(nil), s.resolver.Typologies()...),
	}
}

// Run processes every municipality and folds the partial results in input
// order, so the output does not depend on the number of workers. A
// configuration error or cancellation stops the batch even without FailFast.
// On a fatal error the partials completed so far are still returned with it.
func (s *Service) Run(ctx context.Context, municipalities []domain.Municipality) (*Result, error) {
	partials := make([]*Partial, len(municipalities))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i := range municipalities {
		m := municipalities[i]
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			p, err := s.ProcessMunicipality(gctx, m)
			partials[i] = p
			if err != nil && (s.opts.FailFast || IsFatal(err)) {
				return fmt.Errorf("municipality %d (%s): %w", m.Code, m.Name, err)
			}
			return nil
		})
	}
	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}

	result := s.fold(partials)
	s.logger.Info("batch finished",
		"municipalities", len(municipalities),
		"processed", result.Processed,
		"failures", len(result.Report.Failures),
		"warnings", len(result.Report.Warnings))
	return result, runErr
}

// fold concatenates partial results.
func (s *Service) fold(partials []*Partial) *Result {
	result := &Result{
		Disaggregated: s.DisaggregatedLayout(),
		Summary:       s.SummaryLayout(),
	}
	for _, p := range partials {
		if p == nil {
			continue
		}
		result.Disaggregated.Rows = append(result.Disaggregated.Rows, p.Disaggregated...)
		result.Summary.Rows = append(result.Summary.Rows, p.Summary...)
		result.Report.Merge(p.Report)
		if len(p.Summary) > 0 {
			result.Processed++
		}
	}
	return result
}

// countGroup is the count rows of one block (or the whole municipality).
type countGroup struct {
	block  domain.BlockKey
	counts []domain.BuildingCount
}

// ProcessMunicipality runs one municipality pass. The returned Partial is
// never nil and its Report holds every failure of the pass. A non-nil error
// means the municipality was aborted, or, with FailFast, that a row failed.
func (s *Service) ProcessMunicipality(ctx context.Context, m domain.Municipality) (*Partial, error) {
	logger := s.logger.With("municipality", m.Code, "name", m.Name)
	p := &Partial{Municipality: m}

	abort := func(err error) (*Partial, error) {
		p.Report.Failures = append(p.Report.Failures, domain.Failure{
			Kind:         domain.FailureKind(err),
			Municipality: m.Code,
			Message:      err.Error(),
		})
		logger.Warn("municipality aborted", "error", err)
		return p, err
	}

	if err := ctx.Err(); err != nil {
		return p, err
	}

	logger.Debug("resolving scheme")
	matrix, err := s.resolver.Resolve(m.Code)
	if err != nil {
		return abort(err)
	}
	p.Report.Warnings = append(p.Report.Warnings, scheme.CheckSums(m.Code, matrix)...)

	counts, err := s.counts.Counts(ctx, m.Code)
	if err != nil {
		return abort(fmt.Errorf("load building counts: %w", err))
	}

	groups := []countGroup{{counts: counts}}
	if s.opts.BlockMode {
		groups = groupByBlock(counts)
	}

	passWidth := len(s.counts.PassThroughColumns())
	summary := make([]int64, len(matrix.Typologies))
	code := strconv.Itoa(m.Code)

	for _, grp := range groups {
		for _, row := range Multiply(matrix, grp.counts, passWidth) {
			if s.opts.BlockMode && row.Buildings == 0 {
				continue
			}

			ints, err := round(row)
			if err != nil {
				f := domain.Failure{
					Kind:         domain.FailureKind(err),
					Municipality: m.Code,
					Combination:  &row.Combination,
					Message:      err.Error(),
				}
				if s.opts.BlockMode {
					block := grp.block
					f.Block = &block
				}
				p.Report.Failures = append(p.Report.Failures, f)
				logger.Warn("combination skipped", "combination", row.Combination.String(), "error", err)
				if s.opts.FailFast {
					return p, fmt.Errorf("combination %s: %w", row.Combination, err)
				}
				continue
			}

			keys := []string{code, m.Name}
			if s.opts.BlockMode {
				keys = append(keys, grp.block.Values()...)
			}
			keys = append(keys, row.Combination.Wall, row.Combination.Floor, string(row.Combination.Use))

			values := make([]int64, 0, 1+passWidth+len(ints))
			values = append(values, int64(math.Round(row.Buildings)))
			for _, v := range row.PassThrough {
				values = append(values, int64(math.Round(v)))
			}
			values = append(values, ints...)
			p.Disaggregated = append(p.Disaggregated, domain.Row{Keys: keys, Values: values})

			for i, n := range ints {
				summary[i] += n
			}
		}
	}

	p.Summary = []domain.Row{{Keys: []string{code, m.Name}, Values: summary}}
	logger.Info("municipality processed", "rows", len(p.Disaggregated), "buildings", apportion.Sum(summary))
	return p, nil
}

// round apportions a scaled row, failing rows whose scheme entry could not
// be read.
func round(row ScaledRow) ([]int64, error) {
	if row.Err != nil {
		return nil, row.Err
	}
	return apportion.LargestRemainder(row.Values)
}

// groupByBlock splits count rows by block, ordered by block key.
func groupByBlock(counts []domain.BuildingCount) []countGroup {
	idx := make(map[domain.BlockKey]int)
	var groups []countGroup
	for _, c := range counts {
		i, ok := idx[c.Block]
		if !ok {
			i = len(groups)
			idx[c.Block] = i
			groups = append(groups, countGroup{block: c.Block})
		}
		groups[i].counts = append(groups[i].counts, c)
	}
	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].block.Less(groups[b].block)
	})
	return groups
}

// IsFatal reports whether err should stop a batch regardless of FailFast:
// configuration problems and cancellation.
func IsFatal(err error) bool {
	var cfg *domain.ConfigurationError
	return errors.As(err, &cfg) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
