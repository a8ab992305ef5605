package typology

import (
	"census-typology/internal/domain"
)

// ScaledRow is a matrix row after multiplication by its building count:
// Values hold real-valued typology counts. Err is carried over from a
// matrix row that could not be built.
type ScaledRow struct {
	Combination domain.Combination
	Buildings   float64
	PassThrough []float64
	Values      []float64
	Err         error
}

type materialPair struct {
	wall, floor string
}

type countTotals struct {
	buildings   float64
	passThrough []float64
}

func (t *countTotals) add(c domain.BuildingCount, width int) {
	if t.passThrough == nil {
		t.passThrough = make([]float64, width)
	}
	t.buildings += c.Buildings
	for i := 0; i < width && i < len(c.PassThrough); i++ {
		t.passThrough[i] += c.PassThrough[i]
	}
}

// Multiply scales every row of the matrix by the building count of its
// combination. A NotApplicable row takes the count of every dwelling use of
// its wall/floor pair; any other row takes the count of its exact
// combination. Combinations without count rows scale to zero. The counts are
// read-only.
func Multiply(m *domain.DistributionMatrix, counts []domain.BuildingCount, passWidth int) []ScaledRow {
	byPair := make(map[materialPair]*countTotals)
	byCombination := make(map[domain.Combination]*countTotals)
	for _, c := range counts {
		comb := c.Combination.Trimmed()
		pair := materialPair{comb.Wall, comb.Floor}
		if byPair[pair] == nil {
			byPair[pair] = &countTotals{}
		}
		byPair[pair].add(c, passWidth)
		if byCombination[comb] == nil {
			byCombination[comb] = &countTotals{}
		}
		byCombination[comb].add(c, passWidth)
	}

	out := make([]ScaledRow, 0, len(m.Rows))
	for _, row := range m.Rows {
		var totals *countTotals
		if row.Combination.Use == domain.DwellingNotApplicable {
			totals = byPair[materialPair{row.Combination.Wall, row.Combination.Floor}]
		} else {
			totals = byCombination[row.Combination]
		}

		scaled := ScaledRow{
			Combination: row.Combination,
			PassThrough: make([]float64, passWidth),
			Values:      make([]float64, len(row.Values)),
			Err:         row.Err,
		}
		if totals != nil {
			scaled.Buildings = totals.buildings
			copy(scaled.PassThrough, totals.passThrough)
		}
		for i, f := range row.Values {
			scaled.Values[i] = f * scaled.Buildings
		}
		out = append(out, scaled)
	}
	return out
}
