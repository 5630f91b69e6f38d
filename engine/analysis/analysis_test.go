package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/fintech-community/peerbench/engine/table"
	"github.com/fintech-community/peerbench/engine/types"
)

func peerRow(id string, cluster int, spending, debt, credit float64, txCount int, avgTx float64) types.ClientFeatureRow {
	return types.ClientFeatureRow{
		ClientID:         id,
		Cluster:          cluster,
		Persona:          types.PersonaFor(cluster),
		SpendingRatio:    spending,
		DebtRatio:        debt,
		CreditScore:      credit,
		TransactionCount: txCount,
		AvgTransaction:   avgTx,
	}
}

// AnalysisTestSuite runs the comparison service against a small two-cluster table
type AnalysisTestSuite struct {
	suite.Suite
	table   *table.FeatureTable
	service Service
	ctx     context.Context
}

func (suite *AnalysisTestSuite) SetupTest() {
	rows := []types.ClientFeatureRow{
		peerRow("c1", 0, 0.1, 0.5, 600, 10, 50),
		peerRow("c2", 0, 0.2, 0.5, 650, 20, 150),
		peerRow("c3", 0, 0.3, 0.5, 700, 30, 50),
		peerRow("c4", 0, 0.4, 0.5, 750, 40, 150),
		peerRow("d1", 3, 0.9, 0, 800, 5, 10),
		peerRow("d2", 3, 0.7, 0, 700, 5, 10),
	}

	tbl, err := table.New("snap-test", rows)
	suite.Require().NoError(err)

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	suite.table = tbl
	suite.service = NewService(tbl, log)
	suite.ctx = context.Background()
}

func (suite *AnalysisTestSuite) TestLookupByIDUsesOwnClusterOnly() {
	result, err := suite.service.LookupByID(suite.ctx, "c2")
	suite.Require().NoError(err)

	suite.Equal("c2", result.ClientID)
	suite.Empty(result.MatchedClientID)
	suite.Nil(result.Profile)
	suite.Equal(0, result.Cluster)
	suite.Equal(types.PersonaFor(0), result.Persona)
	suite.Equal(4, result.PeerCount)

	// Cluster 0 credit mean, not the population mean of 700
	credit := result.Comparison[types.FeatureCreditScore]
	suite.Equal(650.0, credit.UserValue)
	suite.Equal(675.0, credit.ClusterAverage)
	suite.Equal(-3.7, credit.DifferencePercent)
	suite.Equal(types.StatusNear, credit.PerformanceStatus)

	suite.Len(result.Comparison, types.NumFeatures)
	suite.Len(result.PercentileRankings, types.NumFeatures)
	suite.Equal(25.0, result.PercentileRankings[types.FeatureCreditScore])
}

func (suite *AnalysisTestSuite) TestLookupByIDPercentileExtremes() {
	lowest, err := suite.service.LookupByID(suite.ctx, "c1")
	suite.Require().NoError(err)
	suite.Equal(0.0, lowest.PercentileRankings[types.FeatureCreditScore])

	highest, err := suite.service.LookupByID(suite.ctx, "c4")
	suite.Require().NoError(err)
	// 100 * (n-1)/n for a value above every other peer
	suite.Equal(75.0, highest.PercentileRankings[types.FeatureCreditScore])
}

func (suite *AnalysisTestSuite) TestLookupByIDZeroAverageFallsBackToZero() {
	result, err := suite.service.LookupByID(suite.ctx, "d1")
	suite.Require().NoError(err)

	debt := result.Comparison[types.FeatureDebtRatio]
	suite.Equal(0.0, debt.ClusterAverage)
	suite.Equal(0.0, debt.DifferencePercent)
	suite.Equal(types.StatusNear, debt.PerformanceStatus)
	suite.Equal(2, result.PeerCount)
}

func (suite *AnalysisTestSuite) TestLookupByIDUnknown() {
	result, err := suite.service.LookupByID(suite.ctx, "zz")
	suite.Nil(result)
	suite.True(errors.Is(err, types.ErrNotFound))
}

func (suite *AnalysisTestSuite) TestLookupByProfileEmpty() {
	result, err := suite.service.LookupByProfile(suite.ctx, types.PartialProfile{})
	suite.Require().NoError(err)

	suite.Empty(result.ClientID)
	suite.NotEmpty(result.MatchedClientID)
	suite.Require().NotNil(result.Profile)
	suite.GreaterOrEqual(result.Cluster, 0)
	suite.Less(result.Cluster, types.ClusterCount)
	suite.Equal(suite.table.ClusterSize(result.Cluster), result.PeerCount)
	suite.Equal(suite.table.Stats(types.FeatureCreditScore).Median, result.Profile.CreditScore)
}

func (suite *AnalysisTestSuite) TestLookupByProfileComparesQueryValues() {
	result, err := suite.service.LookupByProfile(suite.ctx, types.PartialProfile{
		YearlyIncome:     types.Float(1000),
		TotalExpense:     types.Float(250),
		TotalDebt:        types.Float(500),
		CreditScore:      types.Float(725),
		TransactionCount: types.Float(25),
		AvgTransaction:   types.Float(100),
	})
	suite.Require().NoError(err)

	suite.Equal(0, result.Cluster)
	credit := result.Comparison[types.FeatureCreditScore]
	suite.Equal(725.0, credit.UserValue)
	suite.Equal(675.0, credit.ClusterAverage)
	suite.Equal(7.41, credit.DifferencePercent)
	suite.Equal(types.StatusNear, credit.PerformanceStatus)
	suite.Equal(75.0, result.PercentileRankings[types.FeatureCreditScore])
}

func (suite *AnalysisTestSuite) TestCommunitySummary() {
	summary, err := suite.service.CommunitySummary(suite.ctx)
	suite.Require().NoError(err)

	suite.Equal("snap-test", summary.SnapshotID)
	suite.Equal(6, summary.TotalUsers)
	suite.Equal(map[int]int{0: 4, 3: 2}, summary.ClusterDistribution)
	suite.Equal(map[int]string{0: types.PersonaFor(0), 3: types.PersonaFor(3)}, summary.ClusterPersonas)
	suite.Equal(700.0, summary.AverageCreditScore)
	suite.Equal(0.33, summary.AverageDebtRatio)
	suite.Equal(3, summary.TopCluster)

	total := 0
	for _, n := range summary.ClusterDistribution {
		total += n
	}
	suite.Equal(summary.TotalUsers, total)
}

func (suite *AnalysisTestSuite) TestClusterProfiles() {
	profiles, err := suite.service.ClusterProfiles(suite.ctx)
	suite.Require().NoError(err)
	suite.Require().Len(profiles, 2)

	suite.Equal(0, profiles[0].Cluster)
	suite.Equal(4, profiles[0].Size)
	suite.Equal(675.0, profiles[0].Averages[types.FeatureCreditScore])
	suite.Equal(100.0, profiles[0].Averages[types.FeatureAvgTransaction])
	suite.Equal(0.25, profiles[0].Averages[types.FeatureSpendingRatio])

	suite.Equal(3, profiles[1].Cluster)
	suite.Equal(types.PersonaFor(3), profiles[1].Persona)
	suite.Equal(750.0, profiles[1].Averages[types.FeatureCreditScore])
}

func (suite *AnalysisTestSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(suite.ctx)
	cancel()

	_, err := suite.service.LookupByID(ctx, "c1")
	suite.ErrorIs(err, context.Canceled)
	_, err = suite.service.LookupByProfile(ctx, types.PartialProfile{})
	suite.ErrorIs(err, context.Canceled)
	_, err = suite.service.CommunitySummary(ctx)
	suite.ErrorIs(err, context.Canceled)
}

func TestAnalysisTestSuite(t *testing.T) {
	suite.Run(t, new(AnalysisTestSuite))
}

func TestCompareCreditScoreExample(t *testing.T) {
	tbl, err := table.New("s", []types.ClientFeatureRow{
		peerRow("1", 2, 0, 0, 600, 0, 0),
		peerRow("2", 2, 0, 0, 650, 0, 0),
		peerRow("3", 2, 0, 0, 700, 0, 0),
		peerRow("4", 2, 0, 0, 750, 0, 0),
	})
	require.NoError(t, err)

	result := NewPeerComparator(tbl).Compare(2, types.MatchProfile{CreditScore: 725})

	credit := result.Comparison[types.FeatureCreditScore]
	assert.Equal(t, 675.0, credit.ClusterAverage)
	assert.Equal(t, 7.41, credit.DifferencePercent)
	assert.Equal(t, types.StatusNear, credit.PerformanceStatus)
	assert.Equal(t, 75.0, result.PercentileRankings[types.FeatureCreditScore])
	assert.Equal(t, 4, result.PeerCount)
}

func TestCompareStatusBoundaries(t *testing.T) {
	tbl, err := table.New("s", []types.ClientFeatureRow{
		peerRow("1", 1, 0, 0, 0, 0, 50),
		peerRow("2", 1, 0, 0, 0, 0, 150),
	})
	require.NoError(t, err)
	comparator := NewPeerComparator(tbl)

	tests := []struct {
		value    float64
		wantDiff float64
		want     string
	}{
		{value: 110, wantDiff: 10, want: types.StatusNear},
		{value: 90, wantDiff: -10, want: types.StatusNear},
		{value: 111, wantDiff: 11, want: types.StatusAbove},
		{value: 89, wantDiff: -11, want: types.StatusBelow},
		{value: 110.004, wantDiff: 10, want: types.StatusNear},
		{value: 110.006, wantDiff: 10.01, want: types.StatusAbove},
		{value: 100, wantDiff: 0, want: types.StatusNear},
	}

	for _, tt := range tests {
		got := comparator.Compare(1, types.MatchProfile{AvgTransaction: tt.value}).Comparison[types.FeatureAvgTransaction]
		assert.Equal(t, tt.wantDiff, got.DifferencePercent, "value %v", tt.value)
		assert.Equal(t, tt.want, got.PerformanceStatus, "value %v", tt.value)
	}
}

func TestCompareEmptyCluster(t *testing.T) {
	tbl, err := table.New("s", []types.ClientFeatureRow{peerRow("1", 0, 0.5, 0.5, 700, 10, 10)})
	require.NoError(t, err)

	result := NewPeerComparator(tbl).Compare(4, types.MatchProfile{CreditScore: 700})
	assert.Equal(t, 0, result.PeerCount)
	assert.Equal(t, 0.0, result.Comparison[types.FeatureCreditScore].DifferencePercent)
	assert.Equal(t, 0.0, result.PercentileRankings[types.FeatureCreditScore])
}

func TestPerformanceStatus(t *testing.T) {
	assert.Equal(t, types.StatusAbove, PerformanceStatus(10.01))
	assert.Equal(t, types.StatusNear, PerformanceStatus(10))
	assert.Equal(t, types.StatusNear, PerformanceStatus(-10))
	assert.Equal(t, types.StatusBelow, PerformanceStatus(-10.01))
}

func TestCommunityTopClusterTiesGoToLowestID(t *testing.T) {
	tbl, err := table.New("s", []types.ClientFeatureRow{
		peerRow("a", 4, 0, 0, 720, 0, 0),
		peerRow("b", 1, 0, 0, 700, 0, 0),
		peerRow("c", 1, 0, 0, 740, 0, 0),
		peerRow("d", 2, 0, 0, 600, 0, 0),
	})
	require.NoError(t, err)

	summary := NewCommunityAggregator(tbl).Summarize()
	assert.Equal(t, 1, summary.TopCluster)
	assert.Equal(t, 4, summary.TotalUsers)
	assert.Equal(t, 690.0, summary.AverageCreditScore)
}
