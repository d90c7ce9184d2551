package report

import "github.com/shopspring/decimal"

// FormatPrice renders a nullable price with two decimals, "-" when absent.
func FormatPrice(p decimal.NullDecimal) string {
	if !p.Valid {
		return "-"
	}
	return p.Decimal.StringFixed(2)
}
