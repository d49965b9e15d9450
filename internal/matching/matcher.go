// Package matching selects the statement transaction a receipt belongs to.
//
// Matching is a single pass over the transactions, keeping the one whose
// vendor has the highest partial ratio against the receipt text. A later
// row replaces the current best only with a strictly higher score, so ties
// go to the first row seen.
//
//	m := matching.NewMatcher(matching.DefaultOptions())
//	result := m.Match(stmt.Transactions, text)
//	if result.Matched() {
//		tx := result.Transaction
//	}
package matching

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/zombor/receipt-matcher/internal/statement"
)

// Mode selects which constraints a candidate row must satisfy
type Mode string

const (
	// ModeVendor matches on vendor text only
	ModeVendor Mode = "vendor"
	// ModeAmount also requires the row amount to be within AmountTolerance
	// of the amount found in the receipt text
	ModeAmount Mode = "amount"
)

// ParseMode converts a flag or form value to a Mode. Empty means ModeVendor.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeVendor:
		return ModeVendor, nil
	case ModeAmount:
		return ModeAmount, nil
	default:
		return "", fmt.Errorf("unknown match mode %q (want %q or %q)", s, ModeVendor, ModeAmount)
	}
}

// Options configures a Matcher
type Options struct {
	Mode Mode `json:"mode"`
	// MinScore is the floor a score must beat. Zero accepts any positive score.
	MinScore int `json:"min_score"`
	// AmountTolerance is the exclusive bound on |row amount - receipt amount|
	AmountTolerance decimal.Decimal `json:"amount_tolerance"`
}

// DefaultOptions matches on vendor only with no confidence threshold
func DefaultOptions() Options {
	return Options{
		Mode:            ModeVendor,
		MinScore:        0,
		AmountTolerance: decimal.NewFromInt(1),
	}
}

// Result is the outcome of matching one receipt
type Result struct {
	Transaction *statement.Transaction
	Score       int
}

// Matched reports whether a transaction was selected
func (r Result) Matched() bool {
	return r.Transaction != nil
}

// Matcher finds the best transaction for a receipt's text
type Matcher struct {
	options Options
}

// NewMatcher creates a Matcher
func NewMatcher(options Options) *Matcher {
	if options.Mode == "" {
		options.Mode = ModeVendor
	}
	return &Matcher{options: options}
}

// Options returns the matcher configuration
func (m *Matcher) Options() Options {
	return m.options
}

// Match returns the transaction whose vendor best matches text. The returned
// Transaction points into rows.
func (m *Matcher) Match(rows []statement.Transaction, text string) Result {
	best := Result{Score: m.options.MinScore}

	var receiptAmount decimal.Decimal
	if m.options.Mode == ModeAmount {
		receiptAmount = ExtractAmount(text)
	}

	for i := range rows {
		row := &rows[i]
		if m.options.Mode == ModeAmount && !m.withinTolerance(row, receiptAmount) {
			continue
		}

		score := PartialRatio(row.Vendor, text)
		if score > best.Score {
			best = Result{Transaction: row, Score: score}
		}
	}

	if best.Transaction == nil {
		return Result{}
	}
	return best
}

func (m *Matcher) withinTolerance(row *statement.Transaction, amount decimal.Decimal) bool {
	if !row.HasAmount {
		return false
	}
	return row.Amount.Sub(amount).Abs().LessThan(m.options.AmountTolerance)
}
