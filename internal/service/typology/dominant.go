package typology

import "census-typology/internal/domain"

// DominantTypology marks, for every row, the typology with the largest
// count: 1 for that column, 0 for the others. Ties go to the first column.
// Rows without any building in a typology stay all zero. Columns before the
// typology block are copied as they are.
func DominantTypology(t *domain.Table) *domain.Table {
	out := t.EmptyLike()
	out.Rows = make([]domain.Row, 0, len(t.Rows))
	for _, row := range t.Rows {
		values := make([]int64, len(row.Values))
		copy(values[:t.TypologyStart], row.Values[:t.TypologyStart])

		best := -1
		for i := t.TypologyStart; i < len(row.Values); i++ {
			if row.Values[i] <= 0 {
				continue
			}
			if best < 0 || row.Values[i] > row.Values[best] {
				best = i
			}
		}
		if best >= 0 {
			values[best] = 1
		}
		out.Rows = append(out.Rows, domain.Row{
			Keys:   append([]string(nil), row.Keys...),
			Values: values,
		})
	}
	return out
}
