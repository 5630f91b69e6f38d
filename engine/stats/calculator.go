// Package stats holds the descriptive statistics shared by the clusterer, the feature
// table and the comparison engine.
package stats

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// Mean returns the arithmetic mean, 0 for an empty slice
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// PopulationStdDev returns the standard deviation with n in the denominator
func PopulationStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	var sum float64
	for _, v := range values {
		diff := v - mean
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(values)))
}

// Quantile returns the q-th quantile (0..1) using linear interpolation between
// closest ranks
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return quantileSorted(sorted, q)
}

func quantileSorted(sorted []float64, q float64) float64 {
	index := q * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))

	if lower == upper {
		return sorted[lower]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Quantiles returns the quantiles for each q, sorting the input once
func Quantiles(values []float64, qs ...float64) []float64 {
	out := make([]float64, len(qs))
	if len(values) == 0 {
		return out
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	for i, q := range qs {
		out[i] = quantileSorted(sorted, q)
	}
	return out
}

// Median returns the 50th percentile
func Median(values []float64) float64 {
	return Quantile(values, 0.5)
}

// MinMax returns the smallest and largest value, both 0 for an empty slice
func MinMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// RankPercentiles returns, for every value, the share of values less than or equal to it
// times 100
func RankPercentiles(values []float64) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	for i, v := range values {
		// first index strictly greater than v = count of values <= v
		le := sort.Search(n, func(j int) bool { return sorted[j] > v })
		out[i] = float64(le) / float64(n) * 100
	}
	return out
}

// PercentBelow returns the share of values strictly less than v times 100
func PercentBelow(values []float64, v float64) float64 {
	if len(values) == 0 {
		return 0
	}
	below := 0
	for _, x := range values {
		if x < v {
			below++
		}
	}
	return float64(below) / float64(len(values)) * 100
}

// PercentChange returns (current-reference)/reference*100, or 0 when reference is 0
func PercentChange(reference, current float64) float64 {
	if reference == 0 {
		return 0
	}
	return ((current - reference) / reference) * 100
}

// Round2 rounds half away from zero to two decimal places
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
