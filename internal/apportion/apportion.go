// Package apportion rounds real-valued count vectors to integers while
// preserving their total.
package apportion

import (
	"math"
	"sort"

	"census-typology/internal/domain"
)

// LargestRemainder rounds xs to non-negative integers whose sum equals
// round(sum(xs)). Every entry is truncated, then the units still owed go to
// the entries with the largest fractional remainders; ties go to the lower
// index.
func LargestRemainder(xs []float64) ([]int64, error) {
	total := 0.0
	for i, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, domain.ErrDataIntegrity("non-finite value %v at position %d", x, i)
		}
		if x < 0 {
			return nil, domain.ErrDataIntegrity("negative value %v at position %d", x, i)
		}
		total += x
	}

	ys := make([]int64, len(xs))
	if total == 0 {
		return ys, nil
	}

	target := int64(math.Round(total))
	var base int64
	for i, x := range xs {
		ys[i] = int64(math.Floor(x))
		base += ys[i]
	}

	owed := target - base
	if owed <= 0 {
		return ys, nil
	}

	order := make([]int, len(xs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra := xs[order[a]] - math.Floor(xs[order[a]])
		rb := xs[order[b]] - math.Floor(xs[order[b]])
		return ra > rb
	})
	for _, i := range order[:min(int(owed), len(order))] {
		ys[i]++
	}
	return ys, nil
}

// Sum returns the total of an integer vector.
func Sum(ys []int64) int64 {
	var s int64
	for _, y := range ys {
		s += y
	}
	return s
}
