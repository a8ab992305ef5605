package scheme

import (
	"sort"
	"strings"

	"census-typology/internal/domain"
)

// entry is one long-form row of the expanded scheme.
type entry struct {
	combination domain.Combination
	typology    string
	fraction    float64
	err         error
}

// Resolver expands the classification scheme for individual municipalities.
// It is read-only after construction and safe for concurrent use.
type Resolver struct {
	scheme     *domain.Scheme
	typologies []string
	columns    map[string]int
}

// NewResolver creates a Resolver over the given scheme.
func NewResolver(s *domain.Scheme) *Resolver {
	typologies := s.Typologies()
	columns := make(map[string]int, len(typologies))
	for i, t := range typologies {
		columns[t] = i
	}
	return &Resolver{scheme: s, typologies: typologies, columns: columns}
}

// Typologies returns the matrix columns, in scheme declaration order.
func (r *Resolver) Typologies() []string {
	return r.typologies
}

// SchemeRef returns the scheme reference assigned to a municipality.
func (r *Resolver) SchemeRef(municipality int) (string, error) {
	ref, ok := r.scheme.Locales[municipality]
	if !ok || strings.TrimSpace(ref) == "" {
		return "", domain.ErrDataLookup("municipality %d has no scheme code in the scheme list", municipality)
	}
	return strings.TrimSpace(ref), nil
}

// Resolve builds the distribution matrix of one municipality.
func (r *Resolver) Resolve(municipality int) (*domain.DistributionMatrix, error) {
	ref, err := r.SchemeRef(municipality)
	if err != nil {
		return nil, err
	}
	entries, err := r.expand(ref)
	if err != nil {
		return nil, err
	}
	return r.pivot(entries), nil
}

// expand flattens the scheme into long form for one scheme reference.
func (r *Resolver) expand(ref string) ([]entry, error) {
	fragment, variant := SplitSchemeRef(ref)

	var entries []entry
	for _, row := range r.scheme.Rows {
		for _, cell := range row.Cells {
			switch cell.Kind {
			case domain.CellLiteral:
				for _, sh := range cell.Shares {
					entries = append(entries, entry{
						combination: domain.Combination{Wall: row.Wall, Floor: cell.Floor, Use: domain.DwellingNotApplicable},
						typology:    sh.Typology,
						fraction:    sh.Fraction,
					})
				}
			case domain.CellInvalid:
				entries = append(entries, entry{
					combination: domain.Combination{Wall: row.Wall, Floor: cell.Floor, Use: domain.DwellingNotApplicable},
					err:         cell.Err,
				})
			case domain.CellRefinement:
				table, ok := r.scheme.Table(cell.Refinement)
				if !ok {
					return nil, domain.ErrDataLookup("wall %q floor %q references unknown refinement table %d",
						row.Wall, cell.Floor, cell.Refinement)
				}
				for _, detail := range table.Rows {
					if !strings.Contains(detail.SchemeRef, fragment) || !strings.Contains(detail.SchemeRef, variant) {
						continue
					}
					combination := domain.Combination{Wall: row.Wall, Floor: cell.Floor, Use: dwellingUseOf(detail.SchemeRef)}
					if err := floorError(detail, cell.Floor); err != nil {
						entries = append(entries, entry{combination: combination, err: err})
						continue
					}
					pct, ok := detail.Percent[cell.Floor]
					if !ok {
						pct, ok = detail.Percent[strings.TrimSpace(cell.Floor)]
					}
					if !ok {
						continue
					}
					entries = append(entries, entry{
						combination: combination,
						typology:    detail.Typology,
						fraction:    pct / 100,
					})
				}
			}
		}
	}
	return entries, nil
}

func floorError(detail domain.RefinementRow, floor string) error {
	if err, ok := detail.Invalid[floor]; ok {
		return err
	}
	return detail.Invalid[strings.TrimSpace(floor)]
}

// pivot turns long-form entries into a matrix indexed by trimmed
// combination. Fractions landing on the same cell are summed. A failed entry
// marks its whole row failed, keeping the first error.
func (r *Resolver) pivot(entries []entry) *domain.DistributionMatrix {
	rowIdx := make(map[domain.Combination]int)
	m := &domain.DistributionMatrix{Typologies: r.typologies}

	for _, e := range entries {
		c := e.combination.Trimmed()
		i, ok := rowIdx[c]
		if !ok {
			i = len(m.Rows)
			rowIdx[c] = i
			m.Rows = append(m.Rows, domain.MatrixRow{Combination: c, Values: make([]float64, len(r.typologies))})
		}
		if e.err != nil {
			if m.Rows[i].Err == nil {
				m.Rows[i].Err = e.err
			}
			continue
		}
		if col, ok := r.columns[e.typology]; ok {
			m.Rows[i].Values[col] += e.fraction
		}
	}

	sort.SliceStable(m.Rows, func(a, b int) bool {
		return m.Rows[a].Combination.Less(m.Rows[b].Combination)
	})
	return m
}
