// Package workbook loads the classification scheme from its spreadsheet.
package workbook

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"census-typology/internal/domain"
	"census-typology/internal/scheme"
)

// Sheets names the four sheets of the classification workbook.
type Sheets struct {
	Locales   string `yaml:"locales" json:"locales"`
	Scheme    string `yaml:"scheme" json:"scheme"`
	Detailed1 string `yaml:"detailed_1" json:"detailed_1"`
	Detailed2 string `yaml:"detailed_2" json:"detailed_2"`
}

// DefaultSheets are the sheet names used by the published workbook.
func DefaultSheets() Sheets {
	return Sheets{
		Locales:   "mapping_list",
		Scheme:    "mapping",
		Detailed1: "mapping_detailed_1",
		Detailed2: "mapping_detailed_2",
	}
}

// withDefaults fills blank sheet names.
func (s Sheets) withDefaults() Sheets {
	d := DefaultSheets()
	if s.Locales == "" {
		s.Locales = d.Locales
	}
	if s.Scheme == "" {
		s.Scheme = d.Scheme
	}
	if s.Detailed1 == "" {
		s.Detailed1 = d.Detailed1
	}
	if s.Detailed2 == "" {
		s.Detailed2 = d.Detailed2
	}
	return s
}

// Header names of the locale sheet.
const (
	ColLocaleID     = "ID"
	ColLocaleScheme = "MAPPING"
)

// Load opens the workbook at path and reads the scheme from it.
func Load(path string, sheets Sheets) (*domain.Scheme, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, domain.ErrConfiguration("open classification workbook %q: %v", path, err)
	}
	defer f.Close()
	return read(f, sheets)
}

// Read reads the scheme from a workbook stream.
func Read(r io.Reader, sheets Sheets) (*domain.Scheme, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, domain.ErrConfiguration("open classification workbook: %v", err)
	}
	defer f.Close()
	return read(f, sheets)
}

func read(f *excelize.File, sheets Sheets) (*domain.Scheme, error) {
	sheets = sheets.withDefaults()

	present := make(map[string]bool)
	for _, name := range f.GetSheetList() {
		present[name] = true
	}
	for _, name := range []string{sheets.Locales, sheets.Scheme, sheets.Detailed1, sheets.Detailed2} {
		if !present[name] {
			return nil, domain.ErrConfiguration("classification workbook has no sheet %q", name)
		}
	}

	s := &domain.Scheme{}
	var err error
	if s.Locales, err = readLocales(f, sheets.Locales); err != nil {
		return nil, err
	}
	if s.Rows, err = readScheme(f, sheets.Scheme); err != nil {
		return nil, err
	}
	s.Detailed1 = domain.RefinementTable{ID: domain.Detailed1}
	if s.Detailed1.Rows, err = readDetailed(f, sheets.Detailed1); err != nil {
		return nil, err
	}
	s.Detailed2 = domain.RefinementTable{ID: domain.Detailed2}
	if s.Detailed2.Rows, err = readDetailed(f, sheets.Detailed2); err != nil {
		return nil, err
	}
	return s, nil
}

// rows streams a sheet into memory. Trailing empty cells are dropped by
// excelize, so callers index rows through cell.
func rows(f *excelize.File, sheet string) ([][]string, error) {
	r, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	defer r.Close()

	var out [][]string
	for r.Next() {
		cols, err := r.Columns()
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		out = append(out, cols)
	}
	if err := r.Error(); err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return out, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func readLocales(f *excelize.File, sheet string) (map[int]string, error) {
	data, err := rows(f, sheet)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, domain.ErrConfiguration("sheet %q is empty", sheet)
	}
	idCol, refCol := -1, -1
	for i, h := range data[0] {
		switch strings.TrimSpace(h) {
		case ColLocaleID:
			idCol = i
		case ColLocaleScheme:
			refCol = i
		}
	}
	if idCol < 0 || refCol < 0 {
		return nil, domain.ErrConfiguration("sheet %q needs columns %s and %s", sheet, ColLocaleID, ColLocaleScheme)
	}

	locales := make(map[int]string, len(data)-1)
	for n, row := range data[1:] {
		if blank(row) {
			continue
		}
		code, err := parseCode(cell(row, idCol))
		if err != nil {
			return nil, domain.ErrDataIntegrity("sheet %q row %d: %v", sheet, n+2, err)
		}
		locales[code] = strings.TrimSpace(cell(row, refCol))
	}
	return locales, nil
}

// parseCode accepts municipality codes written as integers or as whole
// floats ("5001.0").
func parseCode(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || !d.IsInteger() {
		return 0, fmt.Errorf("malformed municipality code %q", raw)
	}
	return int(d.IntPart()), nil
}

// readScheme reads the wall/floor grid. A cell that does not parse becomes an
// invalid cell rather than failing the load.
func readScheme(f *excelize.File, sheet string) ([]domain.SchemeRow, error) {
	data, err := rows(f, sheet)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || len(data[0]) < 2 {
		return nil, domain.ErrConfiguration("sheet %q needs a wall column and at least one floor column", sheet)
	}
	floors := data[0][1:]

	var out []domain.SchemeRow
	for n, row := range data[1:] {
		wall := strings.TrimSpace(cell(row, 0))
		if wall == "" {
			continue
		}
		sr := domain.SchemeRow{Wall: wall}
		for j, floor := range floors {
			if strings.TrimSpace(floor) == "" {
				continue
			}
			c, err := scheme.ParseCell(floor, cell(row, j+1))
			if err != nil {
				c = domain.InvalidCell(floor, fmt.Errorf("sheet %q row %d: %w", sheet, n+2, err))
			}
			if c.Kind == domain.CellLiteral && len(c.Shares) == 0 {
				continue
			}
			sr.Cells = append(sr.Cells, c)
		}
		out = append(out, sr)
	}
	return out, nil
}

// readDetailed reads a refinement table: scheme reference, typology, then
// one percentage column per floor material. Unreadable percentages are kept
// on the row so that only the combinations using them fail.
func readDetailed(f *excelize.File, sheet string) ([]domain.RefinementRow, error) {
	data, err := rows(f, sheet)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || len(data[0]) < 3 {
		return nil, domain.ErrConfiguration("sheet %q needs scheme, typology and floor columns", sheet)
	}
	floors := data[0][2:]

	var out []domain.RefinementRow
	for n, row := range data[1:] {
		ref := strings.TrimSpace(cell(row, 0))
		typology := strings.TrimSpace(cell(row, 1))
		if ref == "" || typology == "" {
			continue
		}
		rr := domain.RefinementRow{SchemeRef: ref, Typology: typology, Percent: make(map[string]float64)}
		for j, floor := range floors {
			floor = strings.TrimSpace(floor)
			raw := strings.TrimSpace(cell(row, j+2))
			if floor == "" || raw == "" {
				continue
			}
			pct, err := parseNumber(raw)
			if err != nil {
				if rr.Invalid == nil {
					rr.Invalid = make(map[string]error)
				}
				rr.Invalid[floor] = domain.ErrDataIntegrity("sheet %q row %d floor %q: %v", sheet, n+2, floor, err)
				continue
			}
			rr.Percent[floor] = pct
		}
		out = append(out, rr)
	}
	return out, nil
}

// parseNumber reads a percentage in [0, 100], written either as a bare
// number or with a trailing "%".
func parseNumber(raw string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSuffix(raw, "%"))
	if err != nil {
		return 0, fmt.Errorf("malformed percentage %q", raw)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative percentage %q", raw)
	}
	return d.InexactFloat64(), nil
}
