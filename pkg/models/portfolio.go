package models

// PortfolioValue is the sum of shares × price over stocks, counting any
// non-finite shares or price as 0.
func PortfolioValue(stocks []Stock) float64 {
	var total float64
	for _, s := range stocks {
		total += NonNegative(s.Shares) * NonNegative(s.Price)
	}
	return Finite(total)
}

// ShiftChart drops the oldest point of window and appends price. The input
// is not modified.
func ShiftChart(window []float64, price float64) []float64 {
	if len(window) == 0 {
		return []float64{price}
	}
	out := make([]float64, 0, len(window))
	out = append(out, window[1:]...)
	return append(out, price)
}

// Gain is the unrealized gain of a holding: shares × (price − averagePrice).
func Gain(s Stock) float64 {
	if s.Shares == 0 {
		return 0
	}
	return Finite(NonNegative(s.Shares) * (NonNegative(s.Price) - NonNegative(s.AveragePrice)))
}
