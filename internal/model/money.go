package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

const Currency = "NPR"

// FormatNPR renders an amount the way the payments table shows it, e.g. "NPR 1,234.50".
func FormatNPR(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return Currency + " " + sign + b.String() + "." + frac
}
