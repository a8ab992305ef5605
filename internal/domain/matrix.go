package domain

// MatrixRow is one combination of a DistributionMatrix. Values is aligned
// with the matrix Typologies; it holds fractions until scaled by a count.
// A row built from an unreadable scheme entry carries Err instead of values.
type MatrixRow struct {
	Combination Combination
	Values      []float64
	Err         error
}

// DistributionMatrix is the per-municipality pivot of the classification
// scheme: rows are combinations, columns are typologies.
type DistributionMatrix struct {
	Typologies []string
	Rows       []MatrixRow
}

// Row returns the row for the given combination.
func (m *DistributionMatrix) Row(c Combination) (MatrixRow, bool) {
	for _, r := range m.Rows {
		if r.Combination == c {
			return r, true
		}
	}
	return MatrixRow{}, false
}

// Column returns the index of a typology column, or -1.
func (m *DistributionMatrix) Column(typology string) int {
	for i, t := range m.Typologies {
		if t == typology {
			return i
		}
	}
	return -1
}
