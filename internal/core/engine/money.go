package engine

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencyCode is the ISO 4217 code amounts are rendered in
const CurrencyCode = "PHP"

var (
	one     = decimal.NewFromInt(1)
	twelve  = decimal.NewFromInt(12)
	hundred = decimal.NewFromInt(100)
)

// RoundMoney rounds half away from zero to 2 decimal places. For the
// non-negative amounts the engine deals in this is round half-up.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FormatAmount renders an amount as "PHP 12,345.67".
func FormatAmount(d decimal.Decimal) string {
	s := RoundMoney(d).StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	out := CurrencyCode + " " + b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}
