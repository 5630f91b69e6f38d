package analysis

import (
	"github.com/fintech-community/peerbench/engine/stats"
	"github.com/fintech-community/peerbench/engine/table"
	"github.com/fintech-community/peerbench/engine/types"
)

// CommunityAggregator summarises the whole feature table
type CommunityAggregator struct {
	table *table.FeatureTable
}

// NewCommunityAggregator creates an aggregator over t
func NewCommunityAggregator(t *table.FeatureTable) *CommunityAggregator {
	return &CommunityAggregator{table: t}
}

// Summarize returns population totals, the cluster histogram and the cluster with the
// highest mean credit score. Ties go to the lowest cluster id.
func (a *CommunityAggregator) Summarize() *types.AggregateStats {
	summary := &types.AggregateStats{
		SnapshotID:          a.table.SnapshotID(),
		TotalUsers:          a.table.Len(),
		ClusterDistribution: make(map[int]int, types.ClusterCount),
		ClusterPersonas:     make(map[int]string, types.ClusterCount),
		AverageCreditScore:  stats.Round2(stats.Mean(a.table.Column(types.FeatureCreditScore))),
		AverageDebtRatio:    stats.Round2(stats.Mean(a.table.Column(types.FeatureDebtRatio))),
		TopCluster:          -1,
	}

	bestCredit := 0.0
	for _, cluster := range a.table.Clusters() {
		summary.ClusterDistribution[cluster] = a.table.ClusterSize(cluster)
		summary.ClusterPersonas[cluster] = types.PersonaFor(cluster)

		credit := stats.Mean(a.table.ClusterColumn(cluster, types.FeatureCreditScore))
		if summary.TopCluster < 0 || credit > bestCredit {
			summary.TopCluster = cluster
			bestCredit = credit
		}
	}

	return summary
}

// ClusterProfiles returns size and feature means of every non-empty cluster in id order
func (a *CommunityAggregator) ClusterProfiles() []types.ClusterProfile {
	clusters := a.table.Clusters()
	profiles := make([]types.ClusterProfile, 0, len(clusters))

	for _, cluster := range clusters {
		averages := make(map[types.Feature]float64, types.NumFeatures)
		for _, f := range types.ComparisonFeatures {
			averages[f] = stats.Round2(stats.Mean(a.table.ClusterColumn(cluster, f)))
		}
		profiles = append(profiles, types.ClusterProfile{
			Cluster:  cluster,
			Persona:  types.PersonaFor(cluster),
			Size:     a.table.ClusterSize(cluster),
			Averages: averages,
		})
	}

	return profiles
}
