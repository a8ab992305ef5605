// Package tablefile reads and writes output tables as delimited text.
package tablefile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"census-typology/internal/domain"
)

// KnownKeyColumns are the identifying columns the engine writes.
func KnownKeyColumns() []string {
	keys := []string{domain.ColMunicipalityCode, domain.ColMunicipalityName}
	keys = append(keys, domain.BlockKeyColumns...)
	return append(keys, domain.ColWallMaterial, domain.ColFloorMaterial, domain.ColDwellingUse)
}

// Write writes the header and one record per row.
func Write(w io.Writer, t *domain.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, 0, len(t.KeyColumns)+len(t.ValueColumns))
	for _, row := range t.Rows {
		rec = rec[:0]
		rec = append(rec, row.Keys...)
		for _, v := range row.Values {
			rec = append(rec, strconv.FormatInt(v, 10))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes t to path, creating parent directories.
func WriteFile(path string, t *domain.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(f, t); err != nil {
		f.Close() //nolint:errcheck
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// Read parses a table written by Write. Leading columns named in keyColumns
// are identifying columns; every other column must hold numbers. The
// typology block starts after the building count and any pass-through
// columns.
func Read(r io.Reader, keyColumns []string) (*domain.Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, domain.ErrConfiguration("table is empty")
	}
	if err != nil {
		return nil, domain.ErrConfiguration("read table header: %v", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	nKeys := 0
	for nKeys < len(header) && slices.Contains(keyColumns, header[nKeys]) {
		nKeys++
	}
	t := &domain.Table{
		KeyColumns:   header[:nKeys],
		ValueColumns: header[nKeys:],
	}
	for t.TypologyStart < len(t.ValueColumns) {
		col := t.ValueColumns[t.TypologyStart]
		if col != domain.ColBuildings && !slices.Contains(domain.PassThroughColumns, col) {
			break
		}
		t.TypologyStart++
	}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, domain.ErrDataIntegrity("table line %d: %v", line, err)
		}
		row := domain.Row{Keys: rec[:nKeys], Values: make([]int64, len(rec)-nKeys)}
		for i, raw := range rec[nKeys:] {
			v, err := parseCount(raw)
			if err != nil {
				return nil, domain.ErrDataIntegrity("table line %d column %q: %v", line, t.ValueColumns[i], err)
			}
			row.Values[i] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// ReadFile reads a table from path.
func ReadFile(path string, keyColumns []string) (*domain.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.ErrConfiguration("open table: %v", err)
	}
	defer f.Close() //nolint:errcheck
	return Read(f, keyColumns)
}

// parseCount accepts integers and whole floats; blanks are zero.
func parseCount(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a number: %q", raw)
	}
	return int64(math.Round(f)), nil
}
