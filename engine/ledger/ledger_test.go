package ledger

import (
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintech-community/peerbench/engine/types"
)

const sampleLedger = `client_id,date,amount,yearly_income,total_debt,credit_score,num_credit_cards
c2,05/01/2023,$100.00,"$50,000",$10000,700,2
c1,01/02/2023,$20.50,$40000,$20000,650,1
c2,06/01/2023,$300.00,"$99,999",$1,1,9
c1,2023-02-03,-$10.50,$40000,$20000,650,1
c3,07/01/2023,$5.00,$0,$100,500,0
`

func TestReadParsesLedger(t *testing.T) {
	txns, err := Read(strings.NewReader(sampleLedger))
	require.NoError(t, err)
	require.Len(t, txns, 5)

	assert.Equal(t, "c2", txns[0].ClientID)
	assert.Equal(t, time.Date(2023, time.January, 5, 0, 0, 0, 0, time.UTC), txns[0].Date)
	assert.Equal(t, 100.0, txns[0].Amount)
	assert.Equal(t, 50000.0, txns[0].YearlyIncome)
	assert.Equal(t, 2, txns[0].NumCreditCards)
	assert.Equal(t, -10.5, txns[3].Amount)
}

func TestReadRejectsBadInput(t *testing.T) {
	_, err := Read(strings.NewReader(""))
	assert.ErrorContains(t, err, "empty")

	_, err = Read(strings.NewReader("client_id,date,amount\nc1,01/01/2023,1\n"))
	assert.ErrorContains(t, err, "missing required column")

	bad := "client_id,date,amount,yearly_income,total_debt,credit_score,num_credit_cards\nc1,yesterday,1,1,1,1,1\n"
	_, err = Read(strings.NewReader(bad))
	assert.ErrorContains(t, err, "line 2")
}

func TestAggregateUsesFirstValuesAndTotals(t *testing.T) {
	txns, err := Read(strings.NewReader(sampleLedger))
	require.NoError(t, err)

	result := NewAggregator(logrus.New()).Aggregate(txns)
	require.Len(t, result.Rows, 2)
	require.Len(t, result.Rejected, 1)

	assert.Equal(t, "c3", result.Rejected[0].ClientID)
	assert.ErrorIs(t, result.Rejected[0].Reason, types.ErrDegenerateInput)

	c1 := result.Rows[0]
	assert.Equal(t, "c1", c1.ClientID)
	assert.Equal(t, 10.0, c1.TotalSpent)
	assert.Equal(t, 5.0, c1.AvgTransaction)
	assert.Equal(t, 2, c1.TransactionCount)
	assert.Equal(t, 0.5, c1.DebtRatio)

	c2 := result.Rows[1]
	assert.Equal(t, 50000.0, c2.YearlyIncome, "first row wins for per-client constants")
	assert.Equal(t, 700.0, c2.CreditScore)
	assert.Equal(t, 400.0, c2.TotalSpent)
	assert.Equal(t, 200.0, c2.AvgTransaction)
	assert.InDelta(t, 0.008, c2.SpendingRatio, 1e-12)
	assert.InDelta(t, 0.2, c2.DebtRatio, 1e-12)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate([]types.ClientFeatureRow{{ClientID: "a", YearlyIncome: 1}}))

	err := Validate([]types.ClientFeatureRow{{ClientID: "a", YearlyIncome: -5}})
	assert.ErrorIs(t, err, types.ErrDegenerateInput)
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount(" $1,234.50 ")
	require.NoError(t, err)
	assert.Equal(t, 1234.5, v)

	v, err = ParseAmount("-$77")
	require.NoError(t, err)
	assert.Equal(t, -77.0, v)

	_, err = ParseAmount("abc")
	assert.Error(t, err)
}
