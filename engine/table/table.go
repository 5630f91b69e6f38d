// Package table provides the immutable in-memory feature table shared by the matcher and
// the comparison engine.
package table

import (
	"fmt"
	"sort"

	"github.com/fintech-community/peerbench/engine/stats"
	"github.com/fintech-community/peerbench/engine/types"
)

// FeatureStats describes the population distribution of one comparison feature
type FeatureStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// FeatureTable is a load-once, read-only table of clustered client rows.
// Nothing mutates it after New returns, so it can be shared across goroutines freely.
type FeatureTable struct {
	snapshotID string
	rows       []types.ClientFeatureRow
	byID       map[string]int
	byCluster  map[int][]int
	stats      map[types.Feature]FeatureStats
}

// New builds a table from rows. Rows are copied; duplicate client ids and cluster ids
// outside [0, ClusterCount) are rejected.
func New(snapshotID string, rows []types.ClientFeatureRow) (*FeatureTable, error) {
	if len(rows) == 0 {
		return nil, types.ErrEmptyTable
	}

	t := &FeatureTable{
		snapshotID: snapshotID,
		rows:       make([]types.ClientFeatureRow, len(rows)),
		byID:       make(map[string]int, len(rows)),
		byCluster:  make(map[int][]int, types.ClusterCount),
		stats:      make(map[types.Feature]FeatureStats, types.NumFeatures),
	}
	copy(t.rows, rows)

	for i := range t.rows {
		row := &t.rows[i]
		if row.ClientID == "" {
			return nil, fmt.Errorf("row %d has an empty client_id", i)
		}
		if _, dup := t.byID[row.ClientID]; dup {
			return nil, fmt.Errorf("duplicate client_id %q", row.ClientID)
		}
		if row.Cluster < 0 || row.Cluster >= types.ClusterCount {
			return nil, fmt.Errorf("client %q has cluster %d outside [0, %d)", row.ClientID, row.Cluster, types.ClusterCount)
		}
		t.byID[row.ClientID] = i
		t.byCluster[row.Cluster] = append(t.byCluster[row.Cluster], i)
	}

	for _, f := range types.ComparisonFeatures {
		values := t.Column(f)
		min, max := stats.MinMax(values)
		t.stats[f] = FeatureStats{
			Min:    min,
			Max:    max,
			Median: stats.Median(values),
			Mean:   stats.Mean(values),
			StdDev: stats.PopulationStdDev(values),
		}
	}

	return t, nil
}

// FromSnapshot builds a table from a stored snapshot
func FromSnapshot(s *types.Snapshot) (*FeatureTable, error) {
	if s == nil {
		return nil, types.ErrEmptyTable
	}
	return New(s.ID, s.Rows)
}

// SnapshotID returns the id of the snapshot the table was loaded from
func (t *FeatureTable) SnapshotID() string {
	return t.snapshotID
}

// Len returns the number of rows
func (t *FeatureTable) Len() int {
	return len(t.rows)
}

// Row returns the i-th row in table order
func (t *FeatureTable) Row(i int) *types.ClientFeatureRow {
	return &t.rows[i]
}

// Lookup returns the row for a client id
func (t *FeatureTable) Lookup(clientID string) (*types.ClientFeatureRow, bool) {
	i, ok := t.byID[clientID]
	if !ok {
		return nil, false
	}
	return &t.rows[i], true
}

// Column returns a feature's values in table order
func (t *FeatureTable) Column(f types.Feature) []float64 {
	values := make([]float64, len(t.rows))
	for i := range t.rows {
		values[i] = t.rows[i].Value(f)
	}
	return values
}

// ClusterColumn returns a feature's values for the rows of one cluster
func (t *FeatureTable) ClusterColumn(cluster int, f types.Feature) []float64 {
	idx := t.byCluster[cluster]
	values := make([]float64, len(idx))
	for i, ri := range idx {
		values[i] = t.rows[ri].Value(f)
	}
	return values
}

// ClusterSize returns the number of rows assigned to a cluster
func (t *FeatureTable) ClusterSize(cluster int) int {
	return len(t.byCluster[cluster])
}

// Clusters returns the ids of non-empty clusters in ascending order
func (t *FeatureTable) Clusters() []int {
	ids := make([]int, 0, len(t.byCluster))
	for id := range t.byCluster {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Stats returns the population statistics of a feature
func (t *FeatureTable) Stats(f types.Feature) FeatureStats {
	return t.stats[f]
}
