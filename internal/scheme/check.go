package scheme

import (
	"fmt"
	"math"

	"census-typology/internal/domain"
)

// SumTolerance is how far a combination's distribution may drift from 1
// before it is reported. Spreadsheet percentages such as 33.33% leave small
// residues.
const SumTolerance = 0.005

// CheckSums reports every combination whose fractions do not add up to 1.
// A NotApplicable row applies to every dwelling use of its wall/floor pair,
// so when the pair also has refined house or apartment rows each of those is
// checked together with the NotApplicable row instead of on its own. Failed
// rows are skipped. These are source-data problems: the engine still
// processes the row.
func CheckSums(municipality int, m *domain.DistributionMatrix) []domain.Warning {
	type pair struct{ wall, floor string }
	shared := make(map[pair]float64)
	refined := make(map[pair]bool)
	for _, row := range m.Rows {
		if row.Err != nil {
			continue
		}
		p := pair{row.Combination.Wall, row.Combination.Floor}
		if row.Combination.Use == domain.DwellingNotApplicable {
			shared[p] += rowSum(row)
		} else {
			refined[p] = true
		}
	}

	var warnings []domain.Warning
	for _, row := range m.Rows {
		if row.Err != nil {
			continue
		}
		p := pair{row.Combination.Wall, row.Combination.Floor}
		total := shared[p]
		if row.Combination.Use != domain.DwellingNotApplicable {
			total += rowSum(row)
		} else if refined[p] {
			continue
		}
		if math.Abs(total-1) <= SumTolerance {
			continue
		}
		c := row.Combination
		warnings = append(warnings, domain.Warning{
			Municipality: municipality,
			Combination:  &c,
			Message:      fmt.Sprintf("typology fractions sum to %.4f, expected 1", total),
		})
	}
	return warnings
}

func rowSum(row domain.MatrixRow) float64 {
	total := 0.0
	for _, v := range row.Values {
		total += v
	}
	return total
}

// rowFailures reports the matrix rows that could not be built.
func rowFailures(municipality int, m *domain.DistributionMatrix) []domain.Failure {
	var failures []domain.Failure
	for _, row := range m.Rows {
		if row.Err == nil {
			continue
		}
		c := row.Combination
		failures = append(failures, domain.Failure{
			Kind:         domain.FailureKind(row.Err),
			Municipality: municipality,
			Combination:  &c,
			Message:      row.Err.Error(),
		})
	}
	return failures
}

// CheckScheme resolves the scheme for every municipality with a scheme code
// and collects lookup failures, unreadable rows and sum warnings, without
// touching counts.
func CheckScheme(r *Resolver, municipalities []int) domain.Report {
	var report domain.Report
	checked := make(map[string]bool)
	for _, code := range municipalities {
		ref, err := r.SchemeRef(code)
		if err != nil {
			report.Failures = append(report.Failures, domain.Failure{
				Kind:         domain.FailureKind(err),
				Municipality: code,
				Message:      err.Error(),
			})
			continue
		}
		// Municipalities sharing a scheme code share a matrix.
		if checked[ref] {
			continue
		}
		checked[ref] = true
		m, err := r.Resolve(code)
		if err != nil {
			report.Failures = append(report.Failures, domain.Failure{
				Kind:         domain.FailureKind(err),
				Municipality: code,
				Message:      err.Error(),
			})
			continue
		}
		report.Failures = append(report.Failures, rowFailures(code, m)...)
		report.Warnings = append(report.Warnings, CheckSums(code, m)...)
	}
	return report
}
