package export

import (
	"fmt"
	"strings"

	"golang.org/x/text/currency"
)

// ParseCurrency validates an ISO 4217 code and returns its canonical form.
func ParseCurrency(code string) (string, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return "", fmt.Errorf("invalid currency %q: %w", code, err)
	}
	return unit.String(), nil
}

// FormatMinorUnits renders an amount held in minor units using the currency's
// standard scale, e.g. 1250 USD -> "USD 12.50" and 1250 JPY -> "JPY 1250".
func FormatMinorUnits(amount int64, code string) string {
	unit, err := currency.ParseISO(strings.ToUpper(code))
	if err != nil {
		return fmt.Sprintf("%d %s", amount, code)
	}
	scale, _ := currency.Standard.Rounding(unit)

	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	if scale == 0 {
		return fmt.Sprintf("%s %s%d", unit, sign, amount)
	}
	div := int64(1)
	for i := 0; i < scale; i++ {
		div *= 10
	}
	return fmt.Sprintf("%s %s%d.%0*d", unit, sign, amount/div, scale, amount%div)
}
