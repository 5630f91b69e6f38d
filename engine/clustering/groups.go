package clustering

import (
	"github.com/fintech-community/peerbench/engine/stats"
	"github.com/fintech-community/peerbench/engine/types"
)

// IncomeBrackets assigns each income to one of four equal-frequency bins. Bin edges are
// the 0/25/50/75/100th percentiles; bins are right-closed and the first bin includes the
// minimum. When edges coincide the lower bracket wins.
func IncomeBrackets(incomes []float64) []string {
	out := make([]string, len(incomes))
	if len(incomes) == 0 {
		return out
	}

	edges := stats.Quantiles(incomes, 0, 0.25, 0.5, 0.75, 1)
	for i, v := range incomes {
		bracket := len(types.IncomeBrackets) - 1
		for b := 0; b < len(types.IncomeBrackets); b++ {
			if v <= edges[b+1] {
				bracket = b
				break
			}
		}
		out[i] = types.IncomeBrackets[bracket]
	}
	return out
}

// GroupPercentiles ranks each value within its group: the share of group members with an
// equal or lower value, times 100
func GroupPercentiles(values []float64, groups []string) []float64 {
	members := make(map[string][]int)
	for i, g := range groups {
		members[g] = append(members[g], i)
	}

	out := make([]float64, len(values))
	for _, idx := range members {
		groupValues := make([]float64, len(idx))
		for k, i := range idx {
			groupValues[k] = values[i]
		}
		ranks := stats.RankPercentiles(groupValues)
		for k, i := range idx {
			out[i] = ranks[k]
		}
	}
	return out
}
