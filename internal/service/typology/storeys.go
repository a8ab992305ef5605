package typology

import (
	"strings"

	"census-typology/internal/domain"
)

// StoreyMarker starts the last segment of a typology name that carries a
// height class, as in "MUR/LWAL/H:1".
const StoreyMarker = "H"

// StoreyBase returns the typology name without its height segment. Names
// without one are returned unchanged.
func StoreyBase(typology string) string {
	i := strings.LastIndex(typology, "/")
	if i < 0 {
		return typology
	}
	if strings.HasPrefix(typology[i+1:], StoreyMarker) {
		return typology[:i]
	}
	return typology
}

// AggregateStoreys merges typology columns that differ only in their height
// segment, summing their values. Key columns and the value columns before the
// typology block are left untouched. Merged columns keep the position of
// their first member.
func AggregateStoreys(t *domain.Table) *domain.Table {
	out := &domain.Table{
		KeyColumns:    append([]string(nil), t.KeyColumns...),
		ValueColumns:  append([]string(nil), t.ValueColumns[:t.TypologyStart]...),
		TypologyStart: t.TypologyStart,
	}

	target := make([]int, len(t.ValueColumns))
	index := make(map[string]int)
	for i, col := range t.ValueColumns {
		if i < t.TypologyStart {
			target[i] = i
			continue
		}
		base := StoreyBase(col)
		j, ok := index[base]
		if !ok {
			j = len(out.ValueColumns)
			index[base] = j
			out.ValueColumns = append(out.ValueColumns, base)
		}
		target[i] = j
	}

	out.Rows = make([]domain.Row, 0, len(t.Rows))
	for _, row := range t.Rows {
		values := make([]int64, len(out.ValueColumns))
		for i, v := range row.Values {
			values[target[i]] += v
		}
		out.Rows = append(out.Rows, domain.Row{
			Keys:   append([]string(nil), row.Keys...),
			Values: values,
		})
	}
	return out
}
