// Package engine serves the building-count table from an in-process DuckDB.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"census-typology/internal/ddl"
	"census-typology/internal/domain"
)

const inventoryTable = "inventory"

// Columns names the inventory columns the engine reads.
type Columns struct {
	Municipality string `yaml:"municipality" json:"municipality"`
	Wall         string `yaml:"wall" json:"wall"`
	Floor        string `yaml:"floor" json:"floor"`
	Use          string `yaml:"use" json:"use"`
	Buildings    string `yaml:"buildings" json:"buildings"`
}

// DefaultColumns are the column names written by the census aggregator.
func DefaultColumns() Columns {
	return Columns{
		Municipality: "cod",
		Wall:         "Material Pared",
		Floor:        "Material Piso",
		Use:          "Tipo Vivienda",
		Buildings:    "No. edificaciones",
	}
}

func (c Columns) withDefaults() Columns {
	d := DefaultColumns()
	if c.Municipality == "" {
		c.Municipality = d.Municipality
	}
	if c.Wall == "" {
		c.Wall = d.Wall
	}
	if c.Floor == "" {
		c.Floor = d.Floor
	}
	if c.Use == "" {
		c.Use = d.Use
	}
	if c.Buildings == "" {
		c.Buildings = d.Buildings
	}
	return c
}

// Options configures a CountStore.
type Options struct {
	Source      string // local path or s3://, gs://, az://, http(s):// URL
	Delim       string // CSV delimiter; auto-detected when empty
	Columns     Columns
	Blocks      bool // group counts by census block
	Credentials Credentials
}

// CountStore implements domain.CountSource over an inventory file loaded
// into DuckDB. It is safe for concurrent use.
type CountStore struct {
	db     *sql.DB
	opts   Options
	pass   []string
	query  string
	logger *slog.Logger
}

var _ domain.CountSource = (*CountStore)(nil)

// Open loads the inventory into a fresh in-memory DuckDB.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*CountStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts.Columns = opts.Columns.withDefaults()

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	s := &CountStore{db: db, opts: opts, logger: logger}
	if err := s.load(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

// Close releases the DuckDB database.
func (s *CountStore) Close() error {
	return s.db.Close()
}

func (s *CountStore) load(ctx context.Context) error {
	if err := prepareRemote(ctx, s.db, s.opts.Source, s.opts.Credentials); err != nil {
		return err
	}

	stmt, err := ddl.LoadInventory(inventoryTable, s.opts.Source, s.opts.Delim)
	if err != nil {
		return domain.ErrConfiguration("inventory: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return domain.ErrConfiguration("load inventory %q: %v", s.opts.Source, err)
	}

	present, err := s.describe(ctx)
	if err != nil {
		return err
	}

	c := s.opts.Columns
	required := []string{c.Municipality, c.Wall, c.Floor, c.Use, c.Buildings}
	if s.opts.Blocks {
		required = append(required, domain.BlockKeyColumns...)
	}
	var missing []string
	for _, col := range required {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return domain.ErrConfiguration("inventory %q is missing columns: %s", s.opts.Source, strings.Join(missing, ", "))
	}

	for _, col := range domain.PassThroughColumns {
		if present[col] {
			s.pass = append(s.pass, col)
		}
	}
	s.query = s.buildQuery()

	var rows int64
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM "+ddl.QuoteIdentifier(inventoryTable)).Scan(&rows); err != nil {
		return fmt.Errorf("count inventory rows: %w", err)
	}
	s.logger.Info("inventory loaded", "source", s.opts.Source, "rows", rows,
		"pass_through", len(s.pass), "blocks", s.opts.Blocks)
	return nil
}

// describe returns the set of column names of the inventory table.
func (s *CountStore) describe(ctx context.Context) (map[string]bool, error) {
	stmt, err := ddl.DescribeTable(inventoryTable)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("describe inventory: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("describe inventory: %w", err)
	}
	present := make(map[string]bool)
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		dest := make([]any, len(cols))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("describe inventory: %w", err)
		}
		present[vals[0].String] = true
	}
	return present, rows.Err()
}

func text(col string) string {
	return fmt.Sprintf("coalesce(trim(CAST(%s AS VARCHAR)), '')", ddl.QuoteIdentifier(col))
}

// code reads municipality codes written as "05001", "5001" or "5001.0".
func code(col string) string {
	return fmt.Sprintf("TRY_CAST(TRY_CAST(%s AS DOUBLE) AS BIGINT)", text(col))
}

func number(col string) string {
	return fmt.Sprintf("CAST(nullif(trim(CAST(%s AS VARCHAR)), '') AS DOUBLE)", ddl.QuoteIdentifier(col))
}

// buildQuery returns the grouped count query for one municipality.
func (s *CountStore) buildQuery() string {
	c := s.opts.Columns
	keys := []string{text(c.Wall), text(c.Floor), text(c.Use)}
	if s.opts.Blocks {
		for _, col := range domain.BlockKeyColumns {
			keys = append(keys, text(col))
		}
	}
	sums := []string{fmt.Sprintf("coalesce(sum(%s), 0)", number(c.Buildings))}
	for _, col := range s.pass {
		sums = append(sums, fmt.Sprintf("coalesce(sum(%s), 0)", number(col)))
	}

	order := make([]string, len(keys))
	for i := range keys {
		order[i] = strconv.Itoa(i + 1)
	}
	return fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s = ? GROUP BY ALL ORDER BY %s",
		strings.Join(keys, ", "),
		strings.Join(sums, ", "),
		ddl.QuoteIdentifier(inventoryTable),
		code(c.Municipality),
		strings.Join(order, ", "),
	)
}

// PassThroughColumns implements domain.CountSource.
func (s *CountStore) PassThroughColumns() []string {
	return s.pass
}

// Counts implements domain.CountSource. Material labels are trimmed and
// dwelling uses normalised, so differently spelled uses of one combination
// come back as separate rows of the same combination.
func (s *CountStore) Counts(ctx context.Context, municipality int) ([]domain.BuildingCount, error) {
	rows, err := s.db.QueryContext(ctx, s.query, municipality)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.ErrDataIntegrity("query counts for municipality %d: %v", municipality, err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.BuildingCount
	for rows.Next() {
		var (
			wall, floor, use string
			block            [7]string
		)
		bc := domain.BuildingCount{Municipality: municipality, PassThrough: make([]float64, len(s.pass))}

		dest := []any{&wall, &floor, &use}
		if s.opts.Blocks {
			for i := range block {
				dest = append(dest, &block[i])
			}
		}
		dest = append(dest, &bc.Buildings)
		for i := range bc.PassThrough {
			dest = append(dest, &bc.PassThrough[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, domain.ErrDataIntegrity("scan counts for municipality %d: %v", municipality, err)
		}

		bc.Combination = domain.Combination{Wall: wall, Floor: floor, Use: domain.NormalizeDwellingUse(use)}
		if s.opts.Blocks {
			bc.Block = domain.BlockKey{
				Class:           block[0],
				RuralSector:     block[1],
				RuralSection:    block[2],
				PopulatedCentre: block[3],
				UrbanSector:     block[4],
				UrbanSection:    block[5],
				Block:           block[6],
			}
		}
		out = append(out, bc)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrDataIntegrity("read counts for municipality %d: %v", municipality, err)
	}
	return out, nil
}

// Municipalities returns the distinct municipality codes in the inventory.
func (s *CountStore) Municipalities(ctx context.Context) ([]int, error) {
	expr := code(s.opts.Columns.Municipality)
	q := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL ORDER BY 1",
		expr, ddl.QuoteIdentifier(inventoryTable), expr)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list municipalities: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []int
	for rows.Next() {
		var n int64
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("list municipalities: %w", err)
		}
		out = append(out, int(n))
	}
	return out, rows.Err()
}
