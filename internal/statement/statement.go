// Package statement reads credit-card statement CSV exports into normalized
// transactions.
package statement

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrVendorColumnNotFound is returned when no header looks like a vendor column
	ErrVendorColumnNotFound = errors.New("could not find a vendor column (like 'ITEM', 'Vendor', or 'Merchant')")
	// ErrColumnNotFound is returned when a user-selected column is not in the header
	ErrColumnNotFound = errors.New("column not found")
	// ErrEmptyStatement is returned when the CSV has no header row
	ErrEmptyStatement = errors.New("statement has no header row")
	// ErrMalformedStatement wraps CSV syntax errors
	ErrMalformedStatement = errors.New("malformed statement")
)

// Transaction is a single statement row
type Transaction struct {
	Number    string          `json:"number"`
	Vendor    string          `json:"vendor"` // lowercase, trimmed
	Amount    decimal.Decimal `json:"amount"`
	HasAmount bool            `json:"has_amount"`
	Row       int             `json:"row"` // 1-based data row
}

// Columns names the statement columns to use. Empty fields are auto-detected.
type Columns struct {
	Vendor string `json:"vendor,omitempty"`
	Number string `json:"number,omitempty"`
	Amount string `json:"amount,omitempty"`
}

// Statement is a parsed statement
type Statement struct {
	Headers      []string      `json:"headers"`
	VendorColumn string        `json:"vendor_column"`
	NumberColumn string        `json:"number_column,omitempty"` // empty means row numbers
	AmountColumn string        `json:"amount_column,omitempty"`
	Transactions []Transaction `json:"transactions"`
}

// Parse reads a statement CSV. Column choices in sel take precedence over
// detection; a selected column missing from the header is an error.
func Parse(r io.Reader, sel Columns) (*Statement, error) {
	records, err := readRecords(r)
	if err != nil {
		return nil, err
	}
	headers := records[0]

	cols, err := resolve(headers, sel)
	if err != nil {
		return nil, err
	}

	vendorIdx := indexOf(headers, cols.Vendor)
	numberIdx := indexOf(headers, cols.Number)
	amountIdx := indexOf(headers, cols.Amount)

	stmt := &Statement{
		Headers:      headers,
		VendorColumn: cols.Vendor,
		NumberColumn: cols.Number,
		AmountColumn: cols.Amount,
		Transactions: make([]Transaction, 0, len(records)-1),
	}

	for i, record := range records[1:] {
		row := i + 1
		tx := Transaction{
			Vendor: strings.ToLower(strings.TrimSpace(field(record, vendorIdx))),
			Row:    row,
		}
		if numberIdx >= 0 {
			tx.Number = strings.TrimSpace(field(record, numberIdx))
		} else {
			tx.Number = strconv.Itoa(row)
		}
		if amountIdx >= 0 {
			if amount, ok := ParseAmount(field(record, amountIdx)); ok {
				tx.Amount = amount
				tx.HasAmount = true
			}
		}
		stmt.Transactions = append(stmt.Transactions, tx)
	}

	return stmt, nil
}

// ParseAmount parses a statement amount such as "$1,234.50" or "(12.00)"
func ParseAmount(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if s == "" {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

func readRecords(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: reading csv: %w", ErrMalformedStatement, err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyStatement
	}

	headers := records[0]
	for i, h := range headers {
		// Excel exports often lead with a byte order mark
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return records, nil
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}

func indexOf(headers []string, name string) int {
	if name == "" {
		return -1
	}
	for i, h := range headers {
		if h == name {
			return i
		}
	}
	return -1
}
