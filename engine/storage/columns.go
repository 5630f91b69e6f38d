package storage

import (
	"fmt"
	"strconv"

	"github.com/fintech-community/peerbench/engine/types"
)

// featureColumns is the on-disk column order of a feature row, shared by the SQL tables
// and the CSV files
var featureColumns = []string{
	"client_id",
	"yearly_income",
	"total_debt",
	"credit_score",
	"num_credit_cards",
	"total_spent",
	"avg_transaction",
	"transaction_count",
	"spending_ratio",
	"debt_ratio",
	"cluster",
	"persona",
	"income_bracket",
	"spending_percentile",
	"debt_percentile",
	"credit_percentile",
	"persona_spending_percentile",
}

// rowValues returns r's fields in featureColumns order
func rowValues(r *types.ClientFeatureRow) []any {
	return []any{
		r.ClientID,
		r.YearlyIncome,
		r.TotalDebt,
		r.CreditScore,
		r.NumCreditCards,
		r.TotalSpent,
		r.AvgTransaction,
		r.TransactionCount,
		r.SpendingRatio,
		r.DebtRatio,
		r.Cluster,
		r.Persona,
		r.IncomeBracket,
		r.SpendingPercentile,
		r.DebtPercentile,
		r.CreditPercentile,
		r.PersonaSpendingPercentile,
	}
}

// rowTargets returns pointers to r's fields in featureColumns order, for scanning
func rowTargets(r *types.ClientFeatureRow) []any {
	return []any{
		&r.ClientID,
		&r.YearlyIncome,
		&r.TotalDebt,
		&r.CreditScore,
		&r.NumCreditCards,
		&r.TotalSpent,
		&r.AvgTransaction,
		&r.TransactionCount,
		&r.SpendingRatio,
		&r.DebtRatio,
		&r.Cluster,
		&r.Persona,
		&r.IncomeBracket,
		&r.SpendingPercentile,
		&r.DebtPercentile,
		&r.CreditPercentile,
		&r.PersonaSpendingPercentile,
	}
}

func formatValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func parseInto(target any, s string) error {
	switch t := target.(type) {
	case *string:
		*t = s
	case *int:
		n, err := strconv.Atoi(s)
		if err != nil {
			// Accept integral values written as floats, e.g. "12.0"
			f, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil || f != float64(int(f)) {
				return fmt.Errorf("invalid integer %q", s)
			}
			n = int(f)
		}
		*t = n
	case *float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q", s)
		}
		*t = f
	default:
		return fmt.Errorf("unsupported target %T", target)
	}
	return nil
}
