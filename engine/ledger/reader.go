// Package ledger reads the raw per-transaction ledger and aggregates it into per-client
// feature rows.
package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fintech-community/peerbench/engine/types"
)

var requiredColumns = []string{
	"client_id",
	"date",
	"amount",
	"yearly_income",
	"total_debt",
	"credit_score",
	"num_credit_cards",
}

// Accepted date layouts, day-first before ISO
var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2006-01-02",
	"02/01/2006 15:04",
	"2006-01-02 15:04:05",
}

// ReadFile parses a ledger CSV file
func ReadFile(path string) ([]types.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	txns, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("parsing ledger %s: %w", path, err)
	}
	return txns, nil
}

// Read parses ledger CSV. The first row is the header; column order is free and extra
// columns are ignored.
func Read(r io.Reader) ([]types.Transaction, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("ledger is empty")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}

	var txns []types.Transaction
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		txn, err := parseRecord(record, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		txns = append(txns, txn)
	}

	return txns, nil
}

func parseRecord(record []string, cols map[string]int) (types.Transaction, error) {
	var txn types.Transaction
	var err error

	txn.ClientID = strings.TrimSpace(record[cols["client_id"]])
	if txn.ClientID == "" {
		return txn, fmt.Errorf("empty client_id")
	}

	if txn.Date, err = ParseDate(record[cols["date"]]); err != nil {
		return txn, err
	}
	if txn.Amount, err = ParseAmount(record[cols["amount"]]); err != nil {
		return txn, fmt.Errorf("amount: %w", err)
	}
	if txn.YearlyIncome, err = ParseAmount(record[cols["yearly_income"]]); err != nil {
		return txn, fmt.Errorf("yearly_income: %w", err)
	}
	if txn.TotalDebt, err = ParseAmount(record[cols["total_debt"]]); err != nil {
		return txn, fmt.Errorf("total_debt: %w", err)
	}
	if txn.CreditScore, err = ParseAmount(record[cols["credit_score"]]); err != nil {
		return txn, fmt.Errorf("credit_score: %w", err)
	}

	cards, err := ParseAmount(record[cols["num_credit_cards"]])
	if err != nil {
		return txn, fmt.Errorf("num_credit_cards: %w", err)
	}
	txn.NumCreditCards = int(cards)

	return txn, nil
}

// ParseAmount parses a number that may carry a currency sign and thousands separators
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	if negative {
		v = -v
	}
	return v, nil
}

// ParseDate parses a day-first or ISO date
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
