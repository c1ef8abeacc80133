package shared

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MoneyTolerance is the largest absolute difference treated as equal when
// comparing monetary sums (half a cent).
var MoneyTolerance = decimal.RequireFromString("0.005")

// Hundred is used for percentage arithmetic.
var Hundred = decimal.NewFromInt(100)

var brPrinter = message.NewPrinter(language.BrazilianPortuguese)

// FormatMoney renders an amount in Brazilian reais, e.g. "R$ 1.234,50".
// Cents come from StringFixed so no value passes through float64.
func FormatMoney(amount decimal.Decimal) string {
	rounded := amount.Round(2)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
	}
	_, cents, _ := strings.Cut(rounded.Abs().StringFixed(2), ".")
	return brPrinter.Sprintf("R$ %s%d,%s", sign, rounded.Abs().IntPart(), cents)
}

// FormatQuantity renders a unit count with locale grouping.
func FormatQuantity(qty int) string {
	return brPrinter.Sprintf("%d", qty)
}

// MoneyEqual compares two amounts within MoneyTolerance.
func MoneyEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(MoneyTolerance)
}

// Today returns the civil date of now in loc as midnight UTC, the
// representation used for DATE columns.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return CivilDate(now.In(loc))
}

// CivilDate drops the clock part of t, keeping its calendar day.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
