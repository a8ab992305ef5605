// Package reference reads the municipality reference list.
package reference

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"census-typology/internal/domain"
)

// Header names of the municipality list.
const (
	ColCode       = "COD"
	ColName       = "Municipio_name"
	ColDepartment = "Departamento"
)

// Load reads the municipality list at path. The file is ISO-8859-1 encoded.
func Load(path string) ([]domain.Municipality, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.ErrConfiguration("open municipality list: %v", err)
	}
	defer f.Close() //nolint:errcheck
	return Read(f)
}

// Read decodes an ISO-8859-1 municipality list.
func Read(r io.Reader) ([]domain.Municipality, error) {
	cr := csv.NewReader(transform.NewReader(r, charmap.ISO8859_1.NewDecoder()))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, domain.ErrConfiguration("municipality list is empty")
	}
	if err != nil {
		return nil, domain.ErrConfiguration("read municipality list header: %v", err)
	}
	idx := map[string]int{ColCode: -1, ColName: -1, ColDepartment: -1}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if _, ok := idx[h]; ok {
			idx[h] = i
		}
	}
	for col, i := range idx {
		if i < 0 {
			return nil, domain.ErrConfiguration("municipality list has no %s column", col)
		}
	}

	var out []domain.Municipality
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, domain.ErrDataIntegrity("municipality list line %d: %v", line, err)
		}
		field := func(col string) string {
			if i := idx[col]; i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		if field(ColCode) == "" {
			continue
		}
		code, err := strconv.Atoi(field(ColCode))
		if err != nil {
			return nil, domain.ErrDataIntegrity("municipality list line %d: malformed code %q", line, field(ColCode))
		}
		dept, err := strconv.Atoi(field(ColDepartment))
		if err != nil {
			return nil, domain.ErrDataIntegrity("municipality list line %d: malformed department %q", line, field(ColDepartment))
		}
		out = append(out, domain.Municipality{Code: code, Name: field(ColName), Department: dept})
	}
	return out, nil
}

// Select keeps the municipalities of the given departments, in list order,
// minus the excluded codes. An empty department list keeps every
// department.
func Select(all []domain.Municipality, departments []int, exclude []int) []domain.Municipality {
	wanted := make(map[int]bool, len(departments))
	for _, d := range departments {
		wanted[d] = true
	}
	skip := make(map[int]bool, len(exclude))
	for _, c := range exclude {
		skip[c] = true
	}

	var out []domain.Municipality
	for _, m := range all {
		if len(wanted) > 0 && !wanted[m.Department] {
			continue
		}
		if skip[m.Code] {
			continue
		}
		out = append(out, m)
	}
	return out
}

// ResolveDepartments turns department codes or names into numeric codes.
func ResolveDepartments(keys []string) ([]int, error) {
	out := make([]int, 0, len(keys))
	for _, k := range keys {
		d, ok := domain.LookupDepartment(strings.TrimSpace(k))
		if !ok {
			return nil, domain.ErrConfiguration("unknown department %q", k)
		}
		out = append(out, d.Number())
	}
	return out, nil
}
