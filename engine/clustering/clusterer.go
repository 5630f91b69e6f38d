// Package clustering implements the offline clusterer: it standardises the comparison
// features, partitions the population into peer clusters, labels them with personas and
// computes the within-group percentiles of the feature table.
package clustering

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fintech-community/peerbench/engine/config"
	"github.com/fintech-community/peerbench/engine/ledger"
	"github.com/fintech-community/peerbench/engine/types"
)

// Clusterer runs the offline clustering pipeline
type Clusterer struct {
	cfg *config.ClusteringConfig
	log logrus.FieldLogger

	// OnIteration is forwarded to k-means for progress reporting
	OnIteration func(iteration int, inertia float64)
}

// NewClusterer creates a new clusterer
func NewClusterer(cfg *config.ClusteringConfig, log logrus.FieldLogger) *Clusterer {
	if cfg == nil {
		cfg = config.DefaultClusteringConfig()
	}
	return &Clusterer{
		cfg: cfg,
		log: log.WithField("component", "clusterer"),
	}
}

// Run clusters rows and returns a new snapshot. The input rows are not modified.
func (c *Clusterer) Run(ctx context.Context, rows []types.ClientFeatureRow) (*types.Snapshot, error) {
	if len(rows) == 0 {
		return nil, types.ErrEmptyTable
	}
	if err := ledger.Validate(rows); err != nil {
		return nil, err
	}

	start := time.Now()
	c.log.WithFields(logrus.Fields{
		"clients":  len(rows),
		"clusters": c.cfg.Clusters,
		"seed":     c.cfg.Seed,
	}).Info("Starting clustering run")

	points := make([]Vector, len(rows))
	for i := range rows {
		points[i] = rows[i].Vector()
	}

	scaler := FitStandardizer(points)
	scaled := scaler.Transform(points)

	km := &KMeans{
		K:             c.cfg.Clusters,
		Seed:          c.cfg.Seed,
		MaxIterations: c.cfg.MaxIterations,
		Tolerance:     c.cfg.Tolerance,
		Restarts:      c.cfg.Restarts,
		OnIteration:   c.OnIteration,
	}
	fit, err := km.Fit(ctx, scaled)
	if err != nil {
		return nil, fmt.Errorf("k-means failed: %w", err)
	}

	order, err := PersonaOrder(fit.Centroids)
	if err != nil {
		return nil, fmt.Errorf("failed to label personas: %w", err)
	}

	out := make([]types.ClientFeatureRow, len(rows))
	copy(out, rows)

	incomes := make([]float64, len(out))
	personas := make([]string, len(out))
	for i := range out {
		out[i].Cluster = order[fit.Labels[i]]
		out[i].Persona = types.PersonaFor(out[i].Cluster)
		incomes[i] = out[i].YearlyIncome
		personas[i] = out[i].Persona
	}

	brackets := IncomeBrackets(incomes)
	spending := make([]float64, len(out))
	debt := make([]float64, len(out))
	credit := make([]float64, len(out))
	for i := range out {
		out[i].IncomeBracket = brackets[i]
		spending[i] = out[i].SpendingRatio
		debt[i] = out[i].DebtRatio
		credit[i] = out[i].CreditScore
	}

	spendingPct := GroupPercentiles(spending, brackets)
	debtPct := GroupPercentiles(debt, brackets)
	creditPct := GroupPercentiles(credit, brackets)
	personaPct := GroupPercentiles(spending, personas)
	for i := range out {
		out[i].SpendingPercentile = spendingPct[i]
		out[i].DebtPercentile = debtPct[i]
		out[i].CreditPercentile = creditPct[i]
		out[i].PersonaSpendingPercentile = personaPct[i]
	}

	snapshot := &types.Snapshot{
		ID:         uuid.New().String(),
		CreatedAt:  time.Now().UTC(),
		Clusters:   c.cfg.Clusters,
		Seed:       c.cfg.Seed,
		Iterations: fit.Iterations,
		Inertia:    fit.Inertia,
		RowCount:   len(out),
		Rows:       out,
	}

	c.logClusters(fit, order, scaler)
	c.log.WithFields(logrus.Fields{
		"snapshot_id": snapshot.ID,
		"iterations":  fit.Iterations,
		"converged":   fit.Converged,
		"inertia":     fit.Inertia,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Clustering run completed")

	return snapshot, nil
}

func (c *Clusterer) logClusters(fit *KMeansResult, order []int, scaler *Standardizer) {
	sizes := make([]int, len(fit.Centroids))
	for _, l := range fit.Labels {
		sizes[l]++
	}
	for raw, centroid := range fit.Centroids {
		mean := scaler.Inverse(centroid)
		fields := logrus.Fields{
			"cluster": order[raw],
			"persona": types.PersonaFor(order[raw]),
			"size":    sizes[raw],
		}
		for j, f := range types.ComparisonFeatures {
			fields[string(f)] = mean[j]
		}
		c.log.WithFields(fields).Debug("Cluster centroid")
	}
}
