package ledger

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/fintech-community/peerbench/engine/types"
)

// Rejection records a client excluded before clustering
type Rejection struct {
	ClientID     string  `json:"client_id"`
	YearlyIncome float64 `json:"yearly_income"`
	Reason       error   `json:"-"`
}

// AggregateResult is the outcome of aggregating a ledger
type AggregateResult struct {
	Rows     []types.ClientFeatureRow
	Rejected []Rejection
}

// Aggregator turns a per-transaction ledger into per-client feature rows
type Aggregator struct {
	log logrus.FieldLogger
}

// NewAggregator creates a new ledger aggregator
func NewAggregator(log logrus.FieldLogger) *Aggregator {
	return &Aggregator{
		log: log.WithField("component", "ledger-aggregator"),
	}
}

type clientAccumulator struct {
	first types.Transaction
	sum   float64
	count int
}

// Aggregate groups transactions by client id. Per-client constants take the client's
// first row; total_spent, avg_transaction and transaction_count are the sum, mean and
// count of amount. Clients with non-positive yearly income are rejected rather than given
// undefined ratios. Rows come back sorted by client id.
func (a *Aggregator) Aggregate(txns []types.Transaction) *AggregateResult {
	acc := make(map[string]*clientAccumulator)
	for _, txn := range txns {
		c, ok := acc[txn.ClientID]
		if !ok {
			c = &clientAccumulator{first: txn}
			acc[txn.ClientID] = c
		}
		c.sum += txn.Amount
		c.count++
	}

	ids := make([]string, 0, len(acc))
	for id := range acc {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := &AggregateResult{
		Rows: make([]types.ClientFeatureRow, 0, len(ids)),
	}
	for _, id := range ids {
		c := acc[id]
		row, err := BuildRow(id, c.first, c.sum, c.count)
		if err != nil {
			result.Rejected = append(result.Rejected, Rejection{
				ClientID:     id,
				YearlyIncome: c.first.YearlyIncome,
				Reason:       err,
			})
			continue
		}
		result.Rows = append(result.Rows, row)
	}

	a.log.WithFields(logrus.Fields{
		"transactions": len(txns),
		"clients":      len(result.Rows),
		"rejected":     len(result.Rejected),
	}).Info("Aggregated ledger")

	for _, r := range result.Rejected {
		a.log.WithFields(logrus.Fields{
			"client_id":     r.ClientID,
			"yearly_income": r.YearlyIncome,
		}).Warn("Excluded client with non-positive income")
	}

	return result
}

// BuildRow derives one client's features from its first transaction and amount totals
func BuildRow(clientID string, first types.Transaction, total float64, count int) (types.ClientFeatureRow, error) {
	if first.YearlyIncome <= 0 {
		return types.ClientFeatureRow{}, fmt.Errorf("client %s: %w", clientID, types.ErrDegenerateInput)
	}
	if count <= 0 {
		return types.ClientFeatureRow{}, fmt.Errorf("client %s has no transactions", clientID)
	}

	return types.ClientFeatureRow{
		ClientID:         clientID,
		YearlyIncome:     first.YearlyIncome,
		TotalDebt:        first.TotalDebt,
		CreditScore:      first.CreditScore,
		NumCreditCards:   first.NumCreditCards,
		TotalSpent:       total,
		AvgTransaction:   total / float64(count),
		TransactionCount: count,
		SpendingRatio:    total / first.YearlyIncome,
		DebtRatio:        first.TotalDebt / first.YearlyIncome,
	}, nil
}

// Validate checks that every row has usable income-derived ratios
func Validate(rows []types.ClientFeatureRow) error {
	for _, row := range rows {
		if row.YearlyIncome <= 0 {
			return fmt.Errorf("client %s: %w", row.ClientID, types.ErrDegenerateInput)
		}
	}
	return nil
}
