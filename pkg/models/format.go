package models

import (
	"math"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatCurrency renders v with two decimals, "0.00" for non-finite input.
func FormatCurrency(v float64) string {
	return decimal.NewFromFloat(Finite(v)).StringFixed(2)
}

// FormatPercentage renders the magnitude of v with two decimals and a
// trailing percent sign. The sign is conveyed elsewhere.
func FormatPercentage(v float64) string {
	return decimal.NewFromFloat(math.Abs(Finite(v))).StringFixed(2) + "%"
}

// FormatMoney renders v in the given ISO currency, e.g. "$3,100.00". Unknown
// currency codes fall back to "<amount> <code>".
func FormatMoney(v float64, currency string) string {
	if money.GetCurrency(currency) == nil {
		return FormatCurrency(v) + " " + currency
	}
	return money.NewFromFloat(Finite(v), currency).Display()
}
