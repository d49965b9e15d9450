package statement

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrAmountColumnRequired is returned by RequireAmount when no amount column exists
var ErrAmountColumnRequired = errors.New("amount matching needs an amount column")

var (
	vendorKeywords = []string{"item", "vendor", "merchant"}
	amountKeywords = []string{"amount", "debit", "charge"}

	// only tried when no header has a vendorKeywords match
	fallbackVendorKeywords = []string{"payee", "description"}
)

// Detection is the result of inspecting a statement header
type Detection struct {
	Headers  []string `json:"headers"`
	Detected Columns  `json:"detected"`
}

// DetectColumns reads only the header row and reports the columns that
// would be picked automatically
func DetectColumns(r io.Reader) (*Detection, error) {
	records, err := readRecords(r)
	if err != nil {
		return nil, err
	}
	headers := records[0]
	return &Detection{
		Headers: headers,
		Detected: Columns{
			Vendor: detectVendor(headers),
			Number: detectNumber(headers),
			Amount: detectAmount(headers),
		},
	}, nil
}

// RequireAmount reports whether the statement can be matched by amount
func (s *Statement) RequireAmount() error {
	if s.AmountColumn == "" {
		return ErrAmountColumnRequired
	}
	return nil
}

func resolve(headers []string, sel Columns) (Columns, error) {
	var cols Columns

	if sel.Vendor != "" {
		if indexOf(headers, sel.Vendor) < 0 {
			return cols, fmt.Errorf("vendor column %q: %w", sel.Vendor, ErrColumnNotFound)
		}
		cols.Vendor = sel.Vendor
	} else {
		cols.Vendor = detectVendor(headers)
		if cols.Vendor == "" {
			return cols, ErrVendorColumnNotFound
		}
	}

	if sel.Number != "" {
		if indexOf(headers, sel.Number) < 0 {
			return cols, fmt.Errorf("transaction number column %q: %w", sel.Number, ErrColumnNotFound)
		}
		cols.Number = sel.Number
	} else {
		cols.Number = detectNumber(headers)
	}

	if sel.Amount != "" {
		if indexOf(headers, sel.Amount) < 0 {
			return cols, fmt.Errorf("amount column %q: %w", sel.Amount, ErrColumnNotFound)
		}
		cols.Amount = sel.Amount
	} else {
		cols.Amount = detectAmount(headers)
	}

	return cols, nil
}

// detectVendor returns the first header containing any vendor keyword
func detectVendor(headers []string) string {
	if h := firstContaining(headers, vendorKeywords); h != "" {
		return h
	}
	return firstContaining(headers, fallbackVendorKeywords)
}

func detectAmount(headers []string) string {
	return firstContaining(headers, amountKeywords)
}

// detectNumber prefers an exact "#" header, then anything with a "#", then
// common id-like names
func detectNumber(headers []string) string {
	for _, h := range headers {
		if h == "#" {
			return h
		}
	}
	for _, h := range headers {
		if strings.Contains(h, "#") {
			return h
		}
	}
	for _, h := range headers {
		switch strings.ToLower(h) {
		case "id", "no", "no.", "num":
			return h
		}
	}
	for _, h := range headers {
		lower := strings.ToLower(h)
		// card and account numbers are the same on every row
		if strings.Contains(lower, "card") || strings.Contains(lower, "account") {
			continue
		}
		if strings.Contains(lower, "number") || strings.Contains(lower, "reference") {
			return h
		}
	}
	return ""
}

func firstContaining(headers []string, keywords []string) string {
	for _, h := range headers {
		lower := strings.ToLower(h)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return h
			}
		}
	}
	return ""
}
