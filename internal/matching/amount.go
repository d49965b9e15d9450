package matching

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ExtractAmount sums every numeric-looking token in text. Each
// whitespace-delimited token is reduced to its digits and dots; tokens that
// then parse as a decimal are added up. Dates, store numbers and phone
// numbers are summed too.
func ExtractAmount(text string) decimal.Decimal {
	total := decimal.Zero
	for _, token := range strings.Fields(text) {
		digits := strings.Map(func(r rune) rune {
			if (r >= '0' && r <= '9') || r == '.' {
				return r
			}
			return -1
		}, token)
		if digits == "" {
			continue
		}

		value, err := decimal.NewFromString(digits)
		if err != nil {
			continue
		}
		total = total.Add(value)
	}
	return total
}
