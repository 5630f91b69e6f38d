package types

import (
	"time"
)

// Transaction is one row of the raw per-transaction ledger. The income, debt, credit and
// card fields are per-client constants repeated on every row of that client.
type Transaction struct {
	ClientID       string    `json:"client_id"`
	Date           time.Time `json:"date"`
	Amount         float64   `json:"amount"`
	YearlyIncome   float64   `json:"yearly_income"`
	TotalDebt      float64   `json:"total_debt"`
	CreditScore    float64   `json:"credit_score"`
	NumCreditCards int       `json:"num_credit_cards"`
}

// ClientFeatureRow is one client of the clustered feature table
type ClientFeatureRow struct {
	ClientID string `json:"client_id" db:"client_id"`

	YearlyIncome   float64 `json:"yearly_income" db:"yearly_income"`
	TotalDebt      float64 `json:"total_debt" db:"total_debt"`
	CreditScore    float64 `json:"credit_score" db:"credit_score"`
	NumCreditCards int     `json:"num_credit_cards" db:"num_credit_cards"`

	TotalSpent       float64 `json:"total_spent" db:"total_spent"`
	AvgTransaction   float64 `json:"avg_transaction" db:"avg_transaction"`
	TransactionCount int     `json:"transaction_count" db:"transaction_count"`

	SpendingRatio float64 `json:"spending_ratio" db:"spending_ratio"`
	DebtRatio     float64 `json:"debt_ratio" db:"debt_ratio"`

	// Assigned by the clusterer
	Cluster       int    `json:"cluster" db:"cluster"`
	Persona       string `json:"persona" db:"persona"`
	IncomeBracket string `json:"income_bracket" db:"income_bracket"`

	SpendingPercentile        float64 `json:"spending_percentile" db:"spending_percentile"`
	DebtPercentile            float64 `json:"debt_percentile" db:"debt_percentile"`
	CreditPercentile          float64 `json:"credit_percentile" db:"credit_percentile"`
	PersonaSpendingPercentile float64 `json:"persona_spending_percentile" db:"persona_spending_percentile"`
}

// Value returns the row's value for a comparison feature
func (r *ClientFeatureRow) Value(f Feature) float64 {
	switch f {
	case FeatureSpendingRatio:
		return r.SpendingRatio
	case FeatureDebtRatio:
		return r.DebtRatio
	case FeatureCreditScore:
		return r.CreditScore
	case FeatureTransactionCount:
		return float64(r.TransactionCount)
	case FeatureAvgTransaction:
		return r.AvgTransaction
	}
	return 0
}

// Vector returns the comparison features in canonical order
func (r *ClientFeatureRow) Vector() [NumFeatures]float64 {
	var v [NumFeatures]float64
	for i, f := range ComparisonFeatures {
		v[i] = r.Value(f)
	}
	return v
}

// Profile returns the row's comparison features as a MatchProfile
func (r *ClientFeatureRow) Profile() MatchProfile {
	return MatchProfile{
		SpendingRatio:    r.SpendingRatio,
		DebtRatio:        r.DebtRatio,
		CreditScore:      r.CreditScore,
		TransactionCount: float64(r.TransactionCount),
		AvgTransaction:   r.AvgTransaction,
	}
}

// MatchProfile holds the five comparison features of an ad hoc comparison request
type MatchProfile struct {
	SpendingRatio    float64 `json:"spending_ratio"`
	DebtRatio        float64 `json:"debt_ratio"`
	CreditScore      float64 `json:"credit_score"`
	TransactionCount float64 `json:"transaction_count"`
	AvgTransaction   float64 `json:"avg_transaction"`
}

// Value returns the profile's value for a comparison feature
func (p MatchProfile) Value(f Feature) float64 {
	switch f {
	case FeatureSpendingRatio:
		return p.SpendingRatio
	case FeatureDebtRatio:
		return p.DebtRatio
	case FeatureCreditScore:
		return p.CreditScore
	case FeatureTransactionCount:
		return p.TransactionCount
	case FeatureAvgTransaction:
		return p.AvgTransaction
	}
	return 0
}

// Vector returns the profile in canonical feature order
func (p MatchProfile) Vector() [NumFeatures]float64 {
	var v [NumFeatures]float64
	for i, f := range ComparisonFeatures {
		v[i] = p.Value(f)
	}
	return v
}

// PartialProfile is the caller-supplied input of match-by-profile. Nil means absent.
type PartialProfile struct {
	YearlyIncome     *float64 `json:"yearly_income,omitempty"`
	MonthlyIncome    *float64 `json:"monthly_income,omitempty"`
	TotalExpense     *float64 `json:"total_expense,omitempty"`
	MonthlyExpense   *float64 `json:"monthly_expense,omitempty"`
	TotalDebt        *float64 `json:"total_debt,omitempty"`
	CreditScore      *float64 `json:"credit_score,omitempty"`
	TransactionCount *float64 `json:"transaction_count,omitempty"`
	AvgTransaction   *float64 `json:"avg_transaction,omitempty"`
}

// Float returns a pointer to v, for building partial profiles
func Float(v float64) *float64 {
	return &v
}

// FeatureComparison is the per-feature output of the comparison engine
type FeatureComparison struct {
	UserValue         float64 `json:"user_value"`
	ClusterAverage    float64 `json:"cluster_average"`
	DifferencePercent float64 `json:"difference_percent"`
	PerformanceStatus string  `json:"performance_status"`
}

// ComparisonResult is the response of lookup-by-id and lookup-by-profile
type ComparisonResult struct {
	ClientID           string                        `json:"client_id,omitempty"`
	MatchedClientID    string                        `json:"matched_client_id,omitempty"`
	Cluster            int                           `json:"cluster"`
	Persona            string                        `json:"persona"`
	Comparison         map[Feature]FeatureComparison `json:"comparison"`
	PeerCount          int                           `json:"peer_count"`
	PercentileRankings map[Feature]float64           `json:"percentile_rankings"`
	Profile            *MatchProfile                 `json:"profile,omitempty"`
}

// AggregateStats is the community-wide summary
type AggregateStats struct {
	SnapshotID          string         `json:"snapshot_id,omitempty"`
	TotalUsers          int            `json:"total_users"`
	ClusterDistribution map[int]int    `json:"cluster_distribution"`
	ClusterPersonas     map[int]string `json:"cluster_personas"`
	AverageCreditScore  float64        `json:"average_credit_score"`
	AverageDebtRatio    float64        `json:"average_debt_ratio"`
	TopCluster          int            `json:"top_performing_cluster_by_credit_score"`
}

// ClusterProfile summarises one cluster
type ClusterProfile struct {
	Cluster  int                 `json:"cluster"`
	Persona  string              `json:"persona"`
	Size     int                 `json:"size"`
	Averages map[Feature]float64 `json:"averages"`
}

// Snapshot is one clustering run: the versioned, immutable feature table plus run metadata
type Snapshot struct {
	ID         string             `json:"id" db:"id"`
	CreatedAt  time.Time          `json:"created_at" db:"created_at"`
	Clusters   int                `json:"clusters" db:"clusters"`
	Seed       int64              `json:"seed" db:"seed"`
	Iterations int                `json:"iterations" db:"iterations"`
	Inertia    float64            `json:"inertia" db:"inertia"`
	RowCount   int                `json:"row_count" db:"row_count"`
	Rows       []ClientFeatureRow `json:"rows,omitempty"`
}

// SnapshotInfo is the row-less metadata of a snapshot
type SnapshotInfo struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Clusters   int       `json:"clusters"`
	Seed       int64     `json:"seed"`
	Iterations int       `json:"iterations"`
	Inertia    float64   `json:"inertia"`
	RowCount   int       `json:"row_count"`
}

// Info returns the snapshot's metadata
func (s *Snapshot) Info() SnapshotInfo {
	return SnapshotInfo{
		ID:         s.ID,
		CreatedAt:  s.CreatedAt,
		Clusters:   s.Clusters,
		Seed:       s.Seed,
		Iterations: s.Iterations,
		Inertia:    s.Inertia,
		RowCount:   s.RowCount,
	}
}
