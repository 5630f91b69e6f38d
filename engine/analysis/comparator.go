package analysis

import (
	"github.com/fintech-community/peerbench/engine/stats"
	"github.com/fintech-community/peerbench/engine/table"
	"github.com/fintech-community/peerbench/engine/types"
)

// significanceThreshold is the percent difference beyond which a value is reported as
// above or below its peers
const significanceThreshold = 10.0

// PeerComparison is a profile measured against the rows of one cluster
type PeerComparison struct {
	Cluster            int
	Comparison         map[types.Feature]types.FeatureComparison
	PercentileRankings map[types.Feature]float64
	PeerCount          int
}

// PeerComparator compares profiles against their cluster's peers
type PeerComparator struct {
	table *table.FeatureTable
}

// NewPeerComparator creates a comparator over t
func NewPeerComparator(t *table.FeatureTable) *PeerComparator {
	return &PeerComparator{table: t}
}

// Compare measures every comparison feature of profile against the cluster's mean and
// distribution. All outputs are rounded to two decimals.
func (c *PeerComparator) Compare(cluster int, profile types.MatchProfile) *PeerComparison {
	result := &PeerComparison{
		Cluster:            cluster,
		Comparison:         make(map[types.Feature]types.FeatureComparison, types.NumFeatures),
		PercentileRankings: make(map[types.Feature]float64, types.NumFeatures),
		PeerCount:          c.table.ClusterSize(cluster),
	}

	for _, f := range types.ComparisonFeatures {
		peers := c.table.ClusterColumn(cluster, f)
		userValue := profile.Value(f)
		average := stats.Mean(peers)

		// Status follows the reported (rounded) difference so the two never disagree
		diff := stats.Round2(stats.PercentChange(average, userValue))

		result.Comparison[f] = types.FeatureComparison{
			UserValue:         stats.Round2(userValue),
			ClusterAverage:    stats.Round2(average),
			DifferencePercent: diff,
			PerformanceStatus: PerformanceStatus(diff),
		}
		result.PercentileRankings[f] = stats.Round2(stats.PercentBelow(peers, userValue))
	}

	return result
}

// PerformanceStatus classifies a percent difference from the peer average. Exactly ±10
// counts as near.
func PerformanceStatus(differencePercent float64) string {
	switch {
	case differencePercent > significanceThreshold:
		return types.StatusAbove
	case differencePercent < -significanceThreshold:
		return types.StatusBelow
	default:
		return types.StatusNear
	}
}
