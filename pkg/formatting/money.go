package formatting

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatMoney renders amount with two decimal places, comma-grouped thousands
// and a trailing currency code, for example "12,500.00 AED". An empty
// currency omits the suffix.
func FormatMoney(amount decimal.Decimal, currency string) string {
	fixed := amount.StringFixed(2)

	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)

	if currency != "" {
		b.WriteByte(' ')
		b.WriteString(currency)
	}
	return b.String()
}
