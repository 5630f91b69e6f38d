// Package matcher finds the peer row a query is compared against: either the client's own
// row, or the nearest row to an ad hoc profile.
package matcher

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fintech-community/peerbench/engine/table"
	"github.com/fintech-community/peerbench/engine/types"
)

// scanCheckInterval is how many rows are scanned between context checks
const scanCheckInterval = 1024

// Match is the outcome of a peer lookup
type Match struct {
	ClientID string
	Cluster  int
	Persona  string

	// Profile is what gets compared against the cluster: the row's own features for
	// match-by-id, the query's features for match-by-profile
	Profile types.MatchProfile

	// Distance to the matched row, always 0 for match-by-id
	Distance float64
}

// Matcher resolves queries against one feature table
type Matcher struct {
	table *table.FeatureTable
	log   logrus.FieldLogger
}

// New creates a matcher over t
func New(t *table.FeatureTable, log logrus.FieldLogger) *Matcher {
	return &Matcher{
		table: t,
		log:   log.WithField("component", "matcher"),
	}
}

// MatchByID returns the row of a known client
func (m *Matcher) MatchByID(clientID string) (*Match, error) {
	row, ok := m.table.Lookup(clientID)
	if !ok {
		return nil, fmt.Errorf("client %q: %w", clientID, types.ErrNotFound)
	}
	return &Match{
		ClientID: row.ClientID,
		Cluster:  row.Cluster,
		Persona:  row.Persona,
		Profile:  row.Profile(),
	}, nil
}

// MatchByProfile completes a partial profile from population medians and returns the
// nearest row by squared min-max-normalised distance. It never fails on missing fields;
// only a cancelled context stops it.
func (m *Matcher) MatchByProfile(ctx context.Context, partial types.PartialProfile) (*Match, error) {
	query := m.BuildProfile(partial)
	q := query.Vector()

	var ranges [types.NumFeatures]featureRange
	for i, f := range types.ComparisonFeatures {
		s := m.table.Stats(f)
		ranges[i] = featureRange{min: s.Min, max: s.Max}
	}

	var qn [types.NumFeatures]float64
	for i := range q {
		qn[i] = ranges[i].normalize(q[i])
	}

	best := -1
	bestDist := 0.0
	for i := 0; i < m.table.Len(); i++ {
		if i%scanCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		row := m.table.Row(i)
		v := row.Vector()
		dist := 0.0
		for j := range v {
			if ranges[j].flat() {
				continue
			}
			d := qn[j] - ranges[j].normalize(v[j])
			dist += d * d
		}

		if best < 0 || dist < bestDist || (dist == bestDist && row.ClientID < m.table.Row(best).ClientID) {
			best = i
			bestDist = dist
		}
	}

	row := m.table.Row(best)
	m.log.WithFields(logrus.Fields{
		"matched_client_id": row.ClientID,
		"cluster":           row.Cluster,
		"distance":          bestDist,
	}).Debug("Matched profile to nearest peer")

	return &Match{
		ClientID: row.ClientID,
		Cluster:  row.Cluster,
		Persona:  row.Persona,
		Profile:  query,
		Distance: bestDist,
	}, nil
}

// BuildProfile fills the five comparison features from a partial profile. Yearly figures
// fall back to monthly ones times 12; ratios that cannot be derived and absent or zero
// raw features take the population median.
func (m *Matcher) BuildProfile(p types.PartialProfile) types.MatchProfile {
	median := func(f types.Feature) float64 {
		return m.table.Stats(f).Median
	}

	income, hasIncome := yearly(p.YearlyIncome, p.MonthlyIncome)
	expense, hasExpense := yearly(p.TotalExpense, p.MonthlyExpense)
	usableIncome := hasIncome && income > 0

	profile := types.MatchProfile{
		SpendingRatio:    median(types.FeatureSpendingRatio),
		DebtRatio:        median(types.FeatureDebtRatio),
		CreditScore:      orMedian(p.CreditScore, median(types.FeatureCreditScore)),
		TransactionCount: orMedian(p.TransactionCount, median(types.FeatureTransactionCount)),
		AvgTransaction:   orMedian(p.AvgTransaction, median(types.FeatureAvgTransaction)),
	}
	if usableIncome && hasExpense {
		profile.SpendingRatio = expense / income
	}
	if usableIncome && p.TotalDebt != nil {
		profile.DebtRatio = *p.TotalDebt / income
	}
	return profile
}

// yearly returns the annual figure, deriving it from the monthly one when needed
func yearly(annual, monthly *float64) (float64, bool) {
	if annual != nil {
		return *annual, true
	}
	if monthly != nil {
		return *monthly * 12, true
	}
	return 0, false
}

func orMedian(v *float64, median float64) float64 {
	if v == nil || *v == 0 {
		return median
	}
	return *v
}
