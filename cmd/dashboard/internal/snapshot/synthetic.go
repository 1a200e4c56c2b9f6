package snapshot

import (
	"math/rand"
	"time"

	"github.com/shubham-shewale/stock-dashboard/pkg/models"
)

// Rand is the randomness source for synthetic series.
type Rand interface {
	Float64() float64
}

// RealRand adapts *rand.Rand.
type RealRand struct{ *rand.Rand }

func (r RealRand) Float64() float64 { return r.Rand.Float64() }

const (
	// the synthetic series starts this far below (or above) the price
	syntheticOffset = 0.10
	// each interior point wobbles by up to ±2%
	syntheticNoise = 0.02
)

// SyntheticChart builds points values ending exactly at price. An upward
// series starts near 90% of price, a downward one near 110%, and drifts
// linearly towards price with bounded noise.
func SyntheticChart(rnd Rand, points int, price float64, up bool) []float64 {
	if points <= 0 {
		return nil
	}
	price = models.NonNegative(price)
	start := price * (1 + syntheticOffset)
	if up {
		start = price * (1 - syntheticOffset)
	}

	chart := make([]float64, points)
	for i := 0; i < points-1; i++ {
		base := start + (price-start)*float64(i)/float64(points-1)
		noise := 1 + (rnd.Float64()*2-1)*syntheticNoise
		chart[i] = models.NonNegative(base * noise)
	}
	chart[points-1] = price
	return chart
}

// SyntheticCandles builds count daily candles ending the day before now,
// oldest first.
func SyntheticCandles(rnd Rand, count int, now time.Time) []models.Candle {
	if count <= 0 {
		return nil
	}
	candles := make([]models.Candle, count)
	value := 100 + rnd.Float64()*100
	day := now.UTC().Truncate(24*time.Hour).AddDate(0, 0, -count)

	for i := range candles {
		open := value
		change := (rnd.Float64() - 0.5) * 5
		closing := models.NonNegative(open + change)
		high := max(open, closing) + rnd.Float64()*2
		low := models.NonNegative(min(open, closing) - rnd.Float64()*2)

		candles[i] = models.Candle{
			Time:   day.Format(time.DateOnly),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closing,
			Volume: float64(int64(rnd.Float64()*1_000_000) + 500_000),
		}
		value = closing
		day = day.AddDate(0, 0, 1)
	}
	return candles
}
