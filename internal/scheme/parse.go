// Package scheme resolves the classification scheme into per-municipality
// distribution matrices.
package scheme

import (
	"strings"

	"github.com/shopspring/decimal"

	"census-typology/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Refinement-table markers as they appear in scheme cells.
const (
	MarkerDetailed1 = "detailed_1"
	MarkerDetailed2 = "detailed_2"
)

// ParsePercent parses a percentage token such as "62.5%" into a fraction.
func ParsePercent(tok string) (float64, error) {
	tok = strings.TrimSpace(tok)
	if !strings.HasSuffix(tok, "%") {
		return 0, domain.ErrDataIntegrity("malformed percentage %q: missing %% marker", tok)
	}
	d, err := decimal.NewFromString(strings.TrimSuffix(tok, "%"))
	if err != nil {
		return 0, domain.ErrDataIntegrity("malformed percentage %q", tok)
	}
	if d.IsNegative() {
		return 0, domain.ErrDataIntegrity("negative percentage %q", tok)
	}
	return d.Div(hundred).InexactFloat64(), nil
}

// ParseCell converts the raw text of one scheme cell into a SchemeCell.
// A refinement marker defers the cell to a detailed table; otherwise the
// text is read as "pct typology pct typology ...". Blank cells and single
// placeholder tokens carry no distribution.
func ParseCell(floor, raw string) (domain.SchemeCell, error) {
	raw = strings.TrimSpace(raw)
	switch raw {
	case MarkerDetailed1:
		return domain.RefinementCell(floor, domain.Detailed1), nil
	case MarkerDetailed2:
		return domain.RefinementCell(floor, domain.Detailed2), nil
	}

	fields := strings.Fields(raw)
	if len(fields) <= 1 {
		return domain.LiteralCell(floor), nil
	}
	if len(fields)%2 != 0 {
		return domain.SchemeCell{}, domain.ErrDataIntegrity(
			"malformed distribution %q for floor %q: expected percentage/typology pairs", raw, floor)
	}

	shares := make([]domain.Share, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		frac, err := ParsePercent(fields[i])
		if err != nil {
			return domain.SchemeCell{}, err
		}
		shares = append(shares, domain.Share{Typology: fields[i+1], Fraction: frac})
	}
	return domain.LiteralCell(floor, shares...), nil
}

// SplitSchemeRef splits a municipality scheme reference into its locale
// fragment (every "_" token but the last) and its variant (the last token).
func SplitSchemeRef(ref string) (fragment, variant string) {
	ref = strings.TrimSpace(ref)
	i := strings.LastIndex(ref, "_")
	if i < 0 {
		return "", ref
	}
	return ref[:i], ref[i+1:]
}

// dwellingUseOf derives the dwelling use from the trailing token of a
// refinement row's scheme reference.
func dwellingUseOf(ref string) domain.DwellingUse {
	_, last := SplitSchemeRef(ref)
	return domain.NormalizeDwellingUse(last)
}
