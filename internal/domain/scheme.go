package domain

// RefinementID names one of the two detailed refinement tables.
type RefinementID int

// Refinement tables a scheme cell may defer to.
const (
	Detailed1 RefinementID = iota + 1
	Detailed2
)

func (r RefinementID) String() string {
	switch r {
	case Detailed1:
		return "detailed_1"
	case Detailed2:
		return "detailed_2"
	default:
		return "unknown"
	}
}

// Share is one typology with the fraction of buildings assigned to it.
type Share struct {
	Typology string
	Fraction float64
}

// CellKind distinguishes the variants of a scheme cell.
type CellKind int

// Scheme cell variants.
const (
	CellLiteral CellKind = iota
	CellRefinement
	CellInvalid
)

// SchemeCell is one (wall, floor) entry of the classification scheme. A
// literal cell carries its typology shares directly; a refinement cell defers
// to one of the detailed tables, resolved per municipality. An invalid cell
// could not be read from the workbook and fails its row when resolved.
type SchemeCell struct {
	Floor      string
	Kind       CellKind
	Shares     []Share      // CellLiteral only
	Refinement RefinementID // CellRefinement only
	Err        error        // CellInvalid only
}

// LiteralCell builds a literal scheme cell.
func LiteralCell(floor string, shares ...Share) SchemeCell {
	return SchemeCell{Floor: floor, Kind: CellLiteral, Shares: shares}
}

// RefinementCell builds a cell that defers to a detailed table.
func RefinementCell(floor string, id RefinementID) SchemeCell {
	return SchemeCell{Floor: floor, Kind: CellRefinement, Refinement: id}
}

// InvalidCell builds a cell that holds the error it was read with.
func InvalidCell(floor string, err error) SchemeCell {
	return SchemeCell{Floor: floor, Kind: CellInvalid, Err: err}
}

// SchemeRow holds every floor-material cell declared for one wall material.
type SchemeRow struct {
	Wall  string
	Cells []SchemeCell
}

// RefinementRow is one row of a detailed table. SchemeRef is the locale
// scheme reference (e.g. "ANDINA_URBANO_Casa"); Percent maps a floor label
// to a percentage in [0, 100]. Invalid holds the floors whose percentage
// could not be read.
type RefinementRow struct {
	SchemeRef string
	Typology  string
	Percent   map[string]float64
	Invalid   map[string]error
}

// RefinementTable is one detailed table.
type RefinementTable struct {
	ID   RefinementID
	Rows []RefinementRow
}

// Scheme is the full classification scheme: the wall/floor grid, both
// detailed tables and the municipality -> scheme reference lookup.
type Scheme struct {
	Rows      []SchemeRow
	Detailed1 RefinementTable
	Detailed2 RefinementTable
	Locales   map[int]string
}

// Table returns the detailed table with the given ID.
func (s *Scheme) Table(id RefinementID) (*RefinementTable, bool) {
	switch id {
	case Detailed1:
		return &s.Detailed1, true
	case Detailed2:
		return &s.Detailed2, true
	default:
		return nil, false
	}
}

// Typologies returns every typology the scheme can produce, in declaration
// order: literal cells first as they appear row by row, with a detailed
// table's typologies spliced in at the first cell that references it.
func (s *Scheme) Typologies() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}
	spliced := make(map[RefinementID]bool)
	for _, row := range s.Rows {
		for _, cell := range row.Cells {
			switch cell.Kind {
			case CellLiteral:
				for _, sh := range cell.Shares {
					add(sh.Typology)
				}
			case CellRefinement:
				if spliced[cell.Refinement] {
					continue
				}
				spliced[cell.Refinement] = true
				if t, ok := s.Table(cell.Refinement); ok {
					for _, r := range t.Rows {
						add(r.Typology)
					}
				}
			}
		}
	}
	return out
}
