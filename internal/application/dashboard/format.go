package dashboard

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatDecimal formats v with places decimals in Brazilian notation:
// "." groups thousands and "," separates decimals (1234.5 -> "1.234,50")
func FormatDecimal(v float64, places int32) string {
	return formatBR(decimal.NewFromFloat(v), places)
}

// FormatCurrency formats a money value with two decimals
func FormatCurrency(v float64) string {
	return FormatDecimal(v, 2)
}

// FormatCostPerKM formats unit costs (per km, per kg) with four decimals
func FormatCostPerKM(v float64) string {
	return FormatDecimal(v, 4)
}

// FormatInteger rounds v and groups thousands
func FormatInteger(v float64) string {
	return FormatDecimal(v, 0)
}

// FormatPercent formats a percentage value with two decimals, without the sign
func FormatPercent(v float64) string {
	return FormatDecimal(v, 2)
}

// FormatWeight shows tonnes from 1000 kg up and kilograms below
func FormatWeight(kg float64) string {
	if kg >= 1000 {
		return FormatDecimal(kg/1000, 2) + " T"
	}
	return FormatInteger(kg) + " KG"
}

func formatBR(d decimal.Decimal, places int32) string {
	sign := ""
	d = d.Round(places)
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	intPart, decPart, _ := strings.Cut(d.StringFixed(places), ".")

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	if decPart != "" {
		b.WriteByte(',')
		b.WriteString(decPart)
	}
	return sign + b.String()
}
