package clustering

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/fintech-community/peerbench/engine/config"
	"github.com/fintech-community/peerbench/engine/types"
)

// syntheticPopulation builds five well-separated behavioural groups
func syntheticPopulation(perGroup int) []types.ClientFeatureRow {
	rng := rand.New(rand.NewPCG(1, 2))
	centers := []types.MatchProfile{
		{SpendingRatio: 0.3, DebtRatio: 3.0, CreditScore: 580, TransactionCount: 40, AvgTransaction: 40},
		{SpendingRatio: 0.9, DebtRatio: 0.5, CreditScore: 680, TransactionCount: 400, AvgTransaction: 60},
		{SpendingRatio: 0.2, DebtRatio: 0.2, CreditScore: 820, TransactionCount: 60, AvgTransaction: 50},
		{SpendingRatio: 0.4, DebtRatio: 0.6, CreditScore: 720, TransactionCount: 80, AvgTransaction: 400},
		{SpendingRatio: 0.1, DebtRatio: 0.8, CreditScore: 690, TransactionCount: 30, AvgTransaction: 30},
	}

	var rows []types.ClientFeatureRow
	for g, c := range centers {
		for i := 0; i < perGroup; i++ {
			jitter := func(v, spread float64) float64 { return v + (rng.Float64()-0.5)*spread }
			income := 30000 + rng.Float64()*120000
			spending := jitter(c.SpendingRatio, 0.05)
			debt := jitter(c.DebtRatio, 0.05)
			rows = append(rows, types.ClientFeatureRow{
				ClientID:         fmt.Sprintf("g%d-%03d", g, i),
				YearlyIncome:     income,
				TotalSpent:       spending * income,
				TotalDebt:        debt * income,
				SpendingRatio:    spending,
				DebtRatio:        debt,
				CreditScore:      jitter(c.CreditScore, 10),
				TransactionCount: int(jitter(c.TransactionCount, 6)),
				AvgTransaction:   jitter(c.AvgTransaction, 4),
			})
		}
	}
	return rows
}

type ClustererTestSuite struct {
	suite.Suite
	rows      []types.ClientFeatureRow
	clusterer *Clusterer
}

func (s *ClustererTestSuite) SetupTest() {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	s.rows = syntheticPopulation(40)
	s.clusterer = NewClusterer(config.DefaultClusteringConfig(), logger)
}

func (s *ClustererTestSuite) TestEveryRowInExactlyOneCluster() {
	snap, err := s.clusterer.Run(context.Background(), s.rows)
	s.Require().NoError(err)
	s.Require().Len(snap.Rows, len(s.rows))

	for _, row := range snap.Rows {
		s.GreaterOrEqual(row.Cluster, 0)
		s.Less(row.Cluster, types.ClusterCount)
		s.Equal(types.Personas[row.Cluster], row.Persona)
		s.Contains(types.IncomeBrackets[:], row.IncomeBracket)
	}
	s.Equal(len(s.rows), snap.RowCount)
	s.NotEmpty(snap.ID)
	s.Equal(5, snap.Clusters)
}

func (s *ClustererTestSuite) TestSeparatedGroupsLandInPersonaClusters() {
	snap, err := s.clusterer.Run(context.Background(), s.rows)
	s.Require().NoError(err)

	// group index in syntheticPopulation follows types.Personas order
	expected := map[byte]int{'0': 0, '1': 1, '2': 2, '3': 3, '4': 4}
	for _, row := range snap.Rows {
		s.Equal(expected[row.ClientID[1]], row.Cluster, "client %s", row.ClientID)
	}
}

func (s *ClustererTestSuite) TestDeterministicAcrossRuns() {
	first, err := s.clusterer.Run(context.Background(), s.rows)
	s.Require().NoError(err)
	second, err := s.clusterer.Run(context.Background(), s.rows)
	s.Require().NoError(err)

	s.NotEqual(first.ID, second.ID)
	for i := range first.Rows {
		s.Equal(first.Rows[i].Cluster, second.Rows[i].Cluster)
	}
	s.Equal(first.Inertia, second.Inertia)
}

func (s *ClustererTestSuite) TestDoesNotModifyInput() {
	_, err := s.clusterer.Run(context.Background(), s.rows)
	s.Require().NoError(err)
	for _, row := range s.rows {
		s.Empty(row.Persona)
		s.Zero(row.SpendingPercentile)
	}
}

func (s *ClustererTestSuite) TestRejectsDegenerateIncome() {
	s.rows[3].YearlyIncome = 0
	_, err := s.clusterer.Run(context.Background(), s.rows)
	s.ErrorIs(err, types.ErrDegenerateInput)
}

func (s *ClustererTestSuite) TestRejectsEmptyAndTinyPopulations() {
	_, err := s.clusterer.Run(context.Background(), nil)
	s.ErrorIs(err, types.ErrEmptyTable)

	_, err = s.clusterer.Run(context.Background(), s.rows[:3])
	s.ErrorContains(err, "need at least 5 points")
}

func (s *ClustererTestSuite) TestHonoursCancellation() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.clusterer.Run(ctx, s.rows)
	s.ErrorIs(err, context.Canceled)
}

func TestClustererSuite(t *testing.T) {
	suite.Run(t, new(ClustererTestSuite))
}

func TestStandardizer(t *testing.T) {
	points := []Vector{
		{1, 10, 5, 0, 2},
		{3, 20, 5, 0, 4},
		{5, 30, 5, 0, 6},
	}
	s := FitStandardizer(points)
	scaled := s.Transform(points)

	for j := 0; j < types.NumFeatures; j++ {
		col := []float64{scaled[0][j], scaled[1][j], scaled[2][j]}
		mean := (col[0] + col[1] + col[2]) / 3
		assert.InDelta(t, 0, mean, 1e-12)
	}
	// constant feature stays at zero instead of NaN
	assert.Equal(t, 0.0, scaled[1][2])
	assert.InDelta(t, math.Sqrt(1.5), scaled[2][0], 1e-12)

	back := s.Inverse(scaled[2])
	assert.InDelta(t, 5, back[0], 1e-12)
	assert.InDelta(t, 30, back[1], 1e-12)
}

func TestKMeansSeparatesObviousGroups(t *testing.T) {
	var points []Vector
	for i := 0; i < 10; i++ {
		d := float64(i) * 0.01
		points = append(points, Vector{d, 0, 0, 0, 0}, Vector{100 + d, 0, 0, 0, 0})
	}

	km := &KMeans{K: 2, Seed: 42}
	result, err := km.Fit(context.Background(), points)
	require.NoError(t, err)
	assert.True(t, result.Converged)

	for i := 0; i < len(points); i += 2 {
		assert.Equal(t, result.Labels[0], result.Labels[i])
		assert.Equal(t, result.Labels[1], result.Labels[i+1])
	}
	assert.NotEqual(t, result.Labels[0], result.Labels[1])
}

func TestKMeansWithDuplicatePoints(t *testing.T) {
	points := make([]Vector, 8)
	for i := range points {
		points[i] = Vector{1, 1, 1, 1, 1}
	}
	points[7] = Vector{2, 2, 2, 2, 2}

	iterations := 0
	km := &KMeans{K: 3, Seed: 1, OnIteration: func(int, float64) { iterations++ }}
	result, err := km.Fit(context.Background(), points)
	require.NoError(t, err)
	assert.Len(t, result.Labels, 8)
	assert.GreaterOrEqual(t, iterations, result.Iterations)
	for _, c := range result.Centroids {
		assert.False(t, math.IsNaN(c[0]))
	}
}

func TestPersonaOrder(t *testing.T) {
	centroids := []Vector{
		{0, 0, 2, 0, 0},  // best credit -> Premium Low Risk
		{0, 0, 0, 0, 0},  // leftover -> Stable Saver
		{0, 3, 0, 0, 0},  // most debt -> Debt Heavy
		{0, 0, 0, 0, 3},  // biggest tickets -> Affluent Professional
		{1, 0, 0, 2, 0},  // most active -> Active High Spender
	}

	order, err := PersonaOrder(centroids)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 0, 3, 1}, order)

	_, err = PersonaOrder(centroids[:3])
	assert.Error(t, err)
}

func TestIncomeBrackets(t *testing.T) {
	incomes := []float64{10, 20, 30, 40, 50, 60, 70, 80}
	brackets := IncomeBrackets(incomes)

	assert.Equal(t, []string{
		"Low Income", "Low Income",
		"Lower Middle", "Lower Middle",
		"Upper Middle", "Upper Middle",
		"High Income", "High Income",
	}, brackets)

	rank := map[string]int{}
	for i, b := range types.IncomeBrackets {
		rank[b] = i
	}
	for i := 1; i < len(incomes); i++ {
		assert.LessOrEqual(t, rank[brackets[i-1]], rank[brackets[i]])
	}
}

func TestGroupPercentiles(t *testing.T) {
	values := []float64{1, 5, 2, 5, 3}
	groups := []string{"a", "b", "a", "b", "a"}

	got := GroupPercentiles(values, groups)
	assert.InDeltaSlice(t, []float64{100.0 / 3, 100, 200.0 / 3, 100, 100}, got, 1e-9)
}
