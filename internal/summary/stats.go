package summary

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Percentile returns the p-th percentile of sorted using linear
// interpolation between closest ranks, rank = p/100·(N−1).
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	if lo >= n-1 {
		return sorted[n-1]
	}
	if lo < 0 {
		return sorted[0]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// MeanYearlyMin returns the mean across calendar years of each year's
// minimum value, ignoring NaN samples. keep, when non-nil, selects which
// samples take part. ok is false when no sample was kept.
func MeanYearlyMin(times []time.Time, values []float64, keep func(i int) bool) (mean float64, ok bool) {
	mins := make(map[int]float64)
	for i, v := range values {
		if math.IsNaN(v) || (keep != nil && !keep(i)) {
			continue
		}
		y := times[i].Year()
		if m, seen := mins[y]; !seen || v < m {
			mins[y] = v
		}
	}
	if len(mins) == 0 {
		return math.NaN(), false
	}
	years := make([]int, 0, len(mins))
	for y := range mins {
		years = append(years, y)
	}
	sort.Ints(years)
	xs := make([]float64, len(years))
	for i, y := range years {
		xs[i] = mins[y]
	}
	return stat.Mean(xs, nil), true
}
