package models

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Finite returns v, or 0 when v is NaN or infinite.
func Finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// NonNegative is Finite with negative values clamped to 0.
func NonNegative(v float64) float64 {
	v = Finite(v)
	if v < 0 {
		return 0
	}
	return v
}

// Sanitize is the one place numeric fields of a Stock are made safe for
// display and arithmetic. Every ingress path (provider parsing, tick
// parsing, store merge) runs its records through here.
func Sanitize(s Stock) Stock {
	s.Symbol = strings.ToUpper(strings.TrimSpace(s.Symbol))
	if s.Name == "" {
		s.Name = Name(s.Symbol)
	}
	s.Price = NonNegative(s.Price)
	s.PriceChange = Finite(s.PriceChange)
	s.PriceChangePercent = Finite(s.PriceChangePercent)
	s.Shares = NonNegative(s.Shares)
	s.AveragePrice = NonNegative(s.AveragePrice)

	chart := make([]float64, len(s.ChartData))
	for i, v := range s.ChartData {
		chart[i] = NonNegative(v)
	}
	s.ChartData = chart
	return s
}

// ParseNumber parses a provider numeric string. It reports false for
// anything that is not a finite decimal number ("", "NaN", "abc", "1e999"),
// so callers can keep their default instead of storing a bad value.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	if s == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	v, _ := d.Float64()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
