// Package schema validates compare-by-profile request bodies against a JSON schema.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/fintech-community/peerbench/engine/types"
)

// ProfileFields lists the accepted profile inputs
var ProfileFields = []string{
	"yearly_income",
	"monthly_income",
	"total_expense",
	"monthly_expense",
	"total_debt",
	"credit_score",
	"transaction_count",
	"avg_transaction",
}

// ProfileSchema is the JSON schema of a profile request. Every field is optional; null
// means absent.
const ProfileSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"title": "PartialProfile",
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"yearly_income":     {"type": ["number", "null"], "minimum": 0},
		"monthly_income":    {"type": ["number", "null"], "minimum": 0},
		"total_expense":     {"type": ["number", "null"], "minimum": 0},
		"monthly_expense":   {"type": ["number", "null"], "minimum": 0},
		"total_debt":        {"type": ["number", "null"], "minimum": 0},
		"credit_score":      {"type": ["number", "null"], "minimum": 0, "maximum": 1000},
		"transaction_count": {"type": ["number", "null"], "minimum": 0},
		"avg_transaction":   {"type": ["number", "null"], "minimum": 0}
	}
}`

// ProfileValidator checks profile documents against ProfileSchema
type ProfileValidator struct {
	schema *gojsonschema.Schema
}

// NewProfileValidator compiles the profile schema
func NewProfileValidator() (*ProfileValidator, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(ProfileSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile profile schema: %w", err)
	}
	return &ProfileValidator{schema: compiled}, nil
}

// Validate checks a Go value (typically map[string]any) and returns the violations
func (v *ProfileValidator) Validate(document any) ([]string, error) {
	return v.validate(gojsonschema.NewGoLoader(document))
}

// ValidateJSON checks a raw JSON document and returns the violations
func (v *ProfileValidator) ValidateJSON(body []byte) ([]string, error) {
	return v.validate(gojsonschema.NewBytesLoader(body))
}

func (v *ProfileValidator) validate(loader gojsonschema.JSONLoader) ([]string, error) {
	result, err := v.schema.Validate(loader)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}

	violations := make([]string, len(result.Errors()))
	for i, e := range result.Errors() {
		violations[i] = e.String()
	}
	return violations, nil
}

// DecodeJSON validates body and decodes it into a partial profile. Schema violations
// and malformed JSON wrap types.ErrInvalidProfile.
func (v *ProfileValidator) DecodeJSON(body []byte) (types.PartialProfile, error) {
	var profile types.PartialProfile

	if len(bytes.TrimSpace(body)) == 0 {
		return profile, nil
	}

	violations, err := v.ValidateJSON(body)
	if err != nil {
		return profile, fmt.Errorf("%w: %v", types.ErrInvalidProfile, err)
	}
	if len(violations) > 0 {
		return profile, fmt.Errorf("%w: %s", types.ErrInvalidProfile, strings.Join(violations, "; "))
	}

	if err := json.Unmarshal(body, &profile); err != nil {
		return profile, fmt.Errorf("%w: %v", types.ErrInvalidProfile, err)
	}
	return profile, nil
}

// DecodeValues validates already-parsed numeric fields and builds a partial profile
func (v *ProfileValidator) DecodeValues(values map[string]float64) (types.PartialProfile, error) {
	var profile types.PartialProfile

	document := make(map[string]any, len(values))
	for k, val := range values {
		document[k] = val
	}

	violations, err := v.Validate(document)
	if err != nil {
		return profile, fmt.Errorf("%w: %v", types.ErrInvalidProfile, err)
	}
	if len(violations) > 0 {
		return profile, fmt.Errorf("%w: %s", types.ErrInvalidProfile, strings.Join(violations, "; "))
	}

	fields := map[string]**float64{
		"yearly_income":     &profile.YearlyIncome,
		"monthly_income":    &profile.MonthlyIncome,
		"total_expense":     &profile.TotalExpense,
		"monthly_expense":   &profile.MonthlyExpense,
		"total_debt":        &profile.TotalDebt,
		"credit_score":      &profile.CreditScore,
		"transaction_count": &profile.TransactionCount,
		"avg_transaction":   &profile.AvgTransaction,
	}
	for k, val := range values {
		*fields[k] = types.Float(val)
	}
	return profile, nil
}
