package snapshot_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/snapshot"
	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/testutils"
	"github.com/shubham-shewale/stock-dashboard/pkg/config"
	"github.com/shubham-shewale/stock-dashboard/pkg/models"
)

func newFetcher(t *testing.T, provider *testutils.FakeProvider, opts ...snapshot.FetcherOption) *snapshot.Fetcher {
	t.Helper()
	client := snapshot.NewClient("k", snapshot.WithBaseURL(provider.URL))
	opts = append([]snapshot.FetcherOption{snapshot.WithRand(&testutils.MockRand{ValFloat: 0.5})}, opts...)
	return snapshot.NewFetcher(zap.NewNop(), client, opts...)
}

// closes returns n closes newest first: newest, newest-1, ...
func closes(newest float64, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%.2f", newest-float64(i))
	}
	return out
}

func TestFetcher_AllRetrievalsSucceed(t *testing.T) {
	t.Parallel()

	provider := testutils.NewFakeProvider(t)
	provider.SetStock("AAPL", "187.50", "2.5", "1.35", closes(187.5, 35)...)

	stocks := newFetcher(t, provider).Fetch(context.Background(), []string{"aapl"})
	require.Len(t, stocks, 1)

	s := stocks[0]
	require.Equal(t, "AAPL", s.Symbol)
	require.Equal(t, "Apple", s.Name)
	require.Equal(t, 187.5, s.Price)
	require.Equal(t, 2.5, s.PriceChange)
	require.Equal(t, 1.35, s.PriceChangePercent)
	require.Len(t, s.ChartData, models.ChartWindow)
	require.Equal(t, 187.5, s.ChartData[models.ChartWindow-1], "newest close last")
	require.Equal(t, 158.5, s.ChartData[0], "oldest kept close first")
}

func TestFetcher_TimeSeriesFailureUsesSyntheticChart(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		change string
		up     bool
	}{{"3", true}, {"-3", false}, {"0", true}} {
		t.Run(tc.change, func(t *testing.T) {
			provider := testutils.NewFakeProvider(t)
			provider.Set("price", "TSLA", `{"price":"250"}`)
			provider.Set("quote", "TSLA", `{"change":"`+tc.change+`","percent_change":"1"}`)
			provider.Set("time_series", "TSLA", `{"status":"error","code":400,"message":"no data"}`)

			stocks := newFetcher(t, provider).Fetch(context.Background(), []string{"TSLA"})
			require.Len(t, stocks, 1)

			chart := stocks[0].ChartData
			require.Equal(t, 250.0, stocks[0].Price)
			require.Len(t, chart, models.ChartWindow)
			require.Equal(t, 250.0, chart[len(chart)-1])
			if tc.up {
				require.Less(t, chart[0], chart[len(chart)-1])
			} else {
				require.Greater(t, chart[0], chart[len(chart)-1])
			}
		})
	}
}

func TestFetcher_DefaultsOnBadData(t *testing.T) {
	t.Parallel()

	provider := testutils.NewFakeProvider(t)
	provider.Set("price", "MSFT", `{"price":"abc"}`)
	provider.Set("quote", "MSFT", `{"change":"NaN","percent_change":"1.5"}`)

	stocks := newFetcher(t, provider).Fetch(context.Background(), []string{"MSFT"})
	require.Len(t, stocks, 1)
	require.Equal(t, snapshot.DefaultPrice, stocks[0].Price)
	require.Equal(t, 0.0, stocks[0].PriceChange)
	require.Equal(t, 1.5, stocks[0].PriceChangePercent)
	require.Len(t, stocks[0].ChartData, models.ChartWindow)
	require.Equal(t, snapshot.DefaultPrice, stocks[0].ChartData[models.ChartWindow-1])
}

func TestFetcher_UnparseableCloseUsesPrice(t *testing.T) {
	t.Parallel()

	provider := testutils.NewFakeProvider(t)
	provider.SetStock("NVDA", "500", "1", "0.2", "501", "oops", "499")

	stocks := newFetcher(t, provider).Fetch(context.Background(), []string{"NVDA"})
	require.Len(t, stocks, 1)
	require.Equal(t, []float64{499, 500, 501}, stocks[0].ChartData)
}

func TestFetcher_EmptySeriesFallsBack(t *testing.T) {
	t.Parallel()

	provider := testutils.NewFakeProvider(t)
	provider.SetStock("NVDA", "500", "1", "0.2")

	stocks := newFetcher(t, provider).Fetch(context.Background(), []string{"NVDA"})
	require.Len(t, stocks, 1)
	require.Len(t, stocks[0].ChartData, models.ChartWindow)
}

func TestFetcher_PartialOutageKeepsSet(t *testing.T) {
	t.Parallel()

	provider := testutils.NewFakeProvider(t)
	provider.SetStock("AAPL", "150", "1", "1", "150")
	// MSFT answers 404 everywhere

	stocks := newFetcher(t, provider).Fetch(context.Background(), []string{"AAPL", "MSFT"})
	require.Len(t, stocks, 2)
	require.Equal(t, "AAPL", stocks[0].Symbol)
	require.Equal(t, "MSFT", stocks[1].Symbol)
	require.Equal(t, snapshot.DefaultPrice, stocks[1].Price)
}

func TestFetcher_TotalFailureIsEmpty(t *testing.T) {
	t.Parallel()

	provider := testutils.NewFakeProvider(t)
	stocks := newFetcher(t, provider).Fetch(context.Background(), []string{"AAPL", "MSFT"})
	require.Empty(t, stocks)

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	client := snapshot.NewClient("k", snapshot.WithBaseURL(url), snapshot.WithTimeout(time.Second))
	stocks = snapshot.NewFetcher(zap.NewNop(), client).Fetch(context.Background(), []string{"AAPL"})
	require.Empty(t, stocks)
}

func TestFetcher_CancelledContextIsEmpty(t *testing.T) {
	t.Parallel()

	provider := testutils.NewFakeProvider(t)
	provider.SetStock("AAPL", "150", "1", "1", "150")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Empty(t, newFetcher(t, provider).Fetch(ctx, []string{"AAPL"}))
}

func TestFetcher_Holdings(t *testing.T) {
	t.Parallel()

	provider := testutils.NewFakeProvider(t)
	provider.SetStock("AAPL", "150", "1", "1", "150")
	provider.SetStock("MSFT", "300", "1", "1", "300")

	holdings := map[string]config.Holding{
		"AAPL": {Symbol: "AAPL", Shares: 10, AveragePrice: 120},
		"MSFT": {Symbol: "MSFT", Shares: 5, AveragePrice: 250},
	}
	stocks := newFetcher(t, provider, snapshot.WithHoldings(holdings)).Fetch(context.Background(), []string{"AAPL", "MSFT"})
	require.Len(t, stocks, 2)
	require.Equal(t, 10.0, stocks[0].Shares)
	require.Equal(t, 120.0, stocks[0].AveragePrice)
	require.Equal(t, 3000.0, models.PortfolioValue(stocks))
}

func TestFetcher_EmptyInput(t *testing.T) {
	t.Parallel()

	provider := testutils.NewFakeProvider(t)
	require.Empty(t, newFetcher(t, provider).Fetch(context.Background(), nil))
	require.Zero(t, provider.RequestCount())
}

func TestFetcher_Candles(t *testing.T) {
	t.Parallel()

	provider := testutils.NewFakeProvider(t)
	provider.Set("time_series", "AAPL", `{"values":[
		{"datetime":"2024-01-03","open":"3","high":"4","low":"2","close":"3.5","volume":"100"},
		{"datetime":"2024-01-02 00:00:00","open":"2","high":"3","low":"1","close":"2.5","volume":"x"},
		{"datetime":"2024-01-01","open":"bad","high":"2","low":"0","close":"1.5","volume":"100"}
	]}`)

	candles := newFetcher(t, provider).Candles(context.Background(), "aapl", "")
	require.Equal(t, []models.Candle{
		{Time: "2024-01-02", Open: 2, High: 3, Low: 1, Close: 2.5, Volume: 0},
		{Time: "2024-01-03", Open: 3, High: 4, Low: 2, Close: 3.5, Volume: 100},
	}, candles)

	q := provider.Queries[0]
	require.Equal(t, []string{"200"}, q["outputsize"])
	require.Equal(t, []string{"1day"}, q["interval"])
}

func TestFetcher_CandlesFallBack(t *testing.T) {
	t.Parallel()

	provider := testutils.NewFakeProvider(t)
	now := time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)
	f := newFetcher(t, provider, snapshot.WithNow(func() time.Time { return now }))

	candles := f.Candles(context.Background(), "AAPL", "1day")
	require.Len(t, candles, snapshot.CandleCount)
	require.Equal(t, "2024-05-31", candles[len(candles)-1].Time)
	for _, c := range candles {
		require.GreaterOrEqual(t, c.High, c.Low)
	}
}

func TestFetcher_Search(t *testing.T) {
	t.Parallel()

	provider := testutils.NewFakeProvider(t)
	provider.Set("symbol_search", "tes", `{"data":[{"symbol":"TSLA","instrument_name":"Tesla Inc"}]}`)

	f := newFetcher(t, provider)
	require.Len(t, f.Search(context.Background(), "tes"), 1)
	require.Empty(t, f.Search(context.Background(), "zzz"))
	require.Empty(t, f.Search(context.Background(), "  "))
}

func TestSyntheticChart_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		price := rapid.Float64Range(0.01, 1e6).Draw(t, "price")
		up := rapid.Bool().Draw(t, "up")
		noise := rapid.Float64Range(0, 1).Draw(t, "noise")

		chart := snapshot.SyntheticChart(&testutils.MockRand{ValFloat: noise}, models.ChartWindow, price, up)
		if len(chart) != models.ChartWindow {
			t.Fatalf("len = %d", len(chart))
		}
		if chart[len(chart)-1] != price {
			t.Fatalf("last = %v, want %v", chart[len(chart)-1], price)
		}
		if up && !(chart[0] < price) {
			t.Fatalf("upward chart starts at %v >= %v", chart[0], price)
		}
		if !up && !(chart[0] > price) {
			t.Fatalf("downward chart starts at %v <= %v", chart[0], price)
		}
		for _, v := range chart {
			if v < 0 {
				t.Fatalf("negative point %v", v)
			}
		}
	})
}
