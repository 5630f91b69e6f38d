package matcher

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintech-community/peerbench/engine/table"
	"github.com/fintech-community/peerbench/engine/types"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func row(id string, cluster int, spending, debt, credit float64, txCount int, avgTx float64) types.ClientFeatureRow {
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

func newMatcher(t *testing.T, rows ...types.ClientFeatureRow) *Matcher {
	t.Helper()
	tbl, err := table.New("test", rows)
	require.NoError(t, err)
	return New(tbl, testLogger())
}

func threeRowMatcher(t *testing.T) *Matcher {
	return newMatcher(t,
		row("a", 0, 0.2, 0.1, 700, 10, 50),
		row("b", 1, 0.8, 0.9, 600, 100, 20),
		row("c", 2, 0.5, 0.5, 650, 50, 35),
	)
}

func TestMatchByID(t *testing.T) {
	m := threeRowMatcher(t)

	match, err := m.MatchByID("b")
	require.NoError(t, err)
	assert.Equal(t, "b", match.ClientID)
	assert.Equal(t, 1, match.Cluster)
	assert.Equal(t, types.PersonaFor(1), match.Persona)
	assert.Equal(t, types.MatchProfile{
		SpendingRatio:    0.8,
		DebtRatio:        0.9,
		CreditScore:      600,
		TransactionCount: 100,
		AvgTransaction:   20,
	}, match.Profile)
	assert.Zero(t, match.Distance)
}

func TestMatchByIDUnknown(t *testing.T) {
	m := threeRowMatcher(t)

	match, err := m.MatchByID("nobody")
	assert.Nil(t, match)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestMatchByProfileEmptyUsesMedians(t *testing.T) {
	m := threeRowMatcher(t)

	match, err := m.MatchByProfile(context.Background(), types.PartialProfile{})
	require.NoError(t, err)

	// Row c sits on every median
	assert.Equal(t, "c", match.ClientID)
	assert.Equal(t, 2, match.Cluster)
	assert.Zero(t, match.Distance)
	assert.Equal(t, types.MatchProfile{
		SpendingRatio:    0.5,
		DebtRatio:        0.5,
		CreditScore:      650,
		TransactionCount: 50,
		AvgTransaction:   35,
	}, match.Profile)
}

func TestMatchByProfileMonthlyFigures(t *testing.T) {
	m := threeRowMatcher(t)

	match, err := m.MatchByProfile(context.Background(), types.PartialProfile{
		MonthlyIncome:    types.Float(1000),
		MonthlyExpense:   types.Float(200),
		TotalDebt:        types.Float(1200),
		CreditScore:      types.Float(700),
		TransactionCount: types.Float(10),
		AvgTransaction:   types.Float(50),
	})
	require.NoError(t, err)

	assert.Equal(t, "a", match.ClientID)
	assert.InDelta(t, 0.2, match.Profile.SpendingRatio, 1e-12)
	assert.InDelta(t, 0.1, match.Profile.DebtRatio, 1e-12)
	assert.InDelta(t, 0, match.Distance, 1e-12)
}

func TestMatchByProfileKeepsQueryValues(t *testing.T) {
	m := threeRowMatcher(t)

	match, err := m.MatchByProfile(context.Background(), types.PartialProfile{
		YearlyIncome:     types.Float(50000),
		TotalExpense:     types.Float(40000),
		TotalDebt:        types.Float(47000),
		CreditScore:      types.Float(590),
		TransactionCount: types.Float(120),
		AvgTransaction:   types.Float(18),
	})
	require.NoError(t, err)

	assert.Equal(t, "b", match.ClientID)
	// The query's own values are carried, not the matched row's
	assert.InDelta(t, 0.8, match.Profile.SpendingRatio, 1e-12)
	assert.InDelta(t, 0.94, match.Profile.DebtRatio, 1e-12)
	assert.Equal(t, 590.0, match.Profile.CreditScore)
	assert.Equal(t, 120.0, match.Profile.TransactionCount)
	assert.Equal(t, 18.0, match.Profile.AvgTransaction)
	assert.Greater(t, match.Distance, 0.0)
}

func TestBuildProfileFallbacks(t *testing.T) {
	m := threeRowMatcher(t)

	tests := []struct {
		name    string
		partial types.PartialProfile
		want    types.MatchProfile
	}{
		{
			name: "zero income falls back to median ratios",
			partial: types.PartialProfile{
				YearlyIncome: types.Float(0),
				TotalExpense: types.Float(100),
				TotalDebt:    types.Float(100),
			},
			want: types.MatchProfile{SpendingRatio: 0.5, DebtRatio: 0.5, CreditScore: 650, TransactionCount: 50, AvgTransaction: 35},
		},
		{
			name: "income without expense keeps median spending ratio",
			partial: types.PartialProfile{
				YearlyIncome: types.Float(1000),
				TotalDebt:    types.Float(250),
			},
			want: types.MatchProfile{SpendingRatio: 0.5, DebtRatio: 0.25, CreditScore: 650, TransactionCount: 50, AvgTransaction: 35},
		},
		{
			name: "zero raw features use medians",
			partial: types.PartialProfile{
				CreditScore:      types.Float(0),
				TransactionCount: types.Float(0),
				AvgTransaction:   types.Float(0),
			},
			want: types.MatchProfile{SpendingRatio: 0.5, DebtRatio: 0.5, CreditScore: 650, TransactionCount: 50, AvgTransaction: 35},
		},
		{
			name: "yearly figures win over monthly",
			partial: types.PartialProfile{
				YearlyIncome:  types.Float(1000),
				MonthlyIncome: types.Float(1),
				TotalExpense:  types.Float(300),
			},
			want: types.MatchProfile{SpendingRatio: 0.3, DebtRatio: 0.5, CreditScore: 650, TransactionCount: 50, AvgTransaction: 35},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.BuildProfile(tt.partial)
			assert.InDelta(t, tt.want.SpendingRatio, got.SpendingRatio, 1e-12)
			assert.InDelta(t, tt.want.DebtRatio, got.DebtRatio, 1e-12)
			assert.Equal(t, tt.want.CreditScore, got.CreditScore)
			assert.Equal(t, tt.want.TransactionCount, got.TransactionCount)
			assert.Equal(t, tt.want.AvgTransaction, got.AvgTransaction)
		})
	}
}

func TestMatchByProfileTieBreaksOnLowestClientID(t *testing.T) {
	m := newMatcher(t,
		row("z9", 3, 0.5, 0.5, 650, 50, 35),
		row("m5", 1, 0.1, 0.1, 500, 5, 5),
		row("a1", 4, 0.5, 0.5, 650, 50, 35),
		row("q2", 2, 0.9, 0.9, 800, 90, 90),
	)

	match, err := m.MatchByProfile(context.Background(), types.PartialProfile{
		YearlyIncome:     types.Float(100),
		TotalExpense:     types.Float(50),
		TotalDebt:        types.Float(50),
		CreditScore:      types.Float(650),
		TransactionCount: types.Float(50),
		AvgTransaction:   types.Float(35),
	})
	require.NoError(t, err)
	assert.Equal(t, "a1", match.ClientID)
	assert.Equal(t, 4, match.Cluster)
}

func TestMatchByProfileIgnoresFlatFeatures(t *testing.T) {
	// Every row has the same credit score, so the query's credit score cannot matter
	m := newMatcher(t,
		row("a", 0, 0.1, 0.1, 700, 10, 10),
		row("b", 1, 0.9, 0.9, 700, 90, 90),
	)

	match, err := m.MatchByProfile(context.Background(), types.PartialProfile{
		YearlyIncome:     types.Float(100),
		TotalExpense:     types.Float(12),
		TotalDebt:        types.Float(12),
		CreditScore:      types.Float(300),
		TransactionCount: types.Float(12),
		AvgTransaction:   types.Float(12),
	})
	require.NoError(t, err)
	assert.Equal(t, "a", match.ClientID)

	// Differences of 0.02 normalised by a range of 0.8 on four live features
	expected := 4 * (0.02 / 0.8) * (0.02 / 0.8)
	assert.InDelta(t, expected, match.Distance, 1e-9)
}

func TestMatchByProfileCancelled(t *testing.T) {
	m := threeRowMatcher(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	match, err := m.MatchByProfile(ctx, types.PartialProfile{})
	assert.Nil(t, match)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, 0.0, Normalize(10, 10, 20))
	assert.Equal(t, 1.0, Normalize(20, 10, 20))
	assert.Equal(t, 0.5, Normalize(15, 10, 20))
	assert.Equal(t, 0.0, Normalize(15, 7, 7), "zero-width range")
	assert.Equal(t, 1.5, Normalize(25, 10, 20), "values outside the range are not clamped")
}
