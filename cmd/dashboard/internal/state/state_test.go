package state_test

import (
	"math"
	"sync"
	"testing"

	"github.com/kylelemons/godebug/pretty"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/state"
	"github.com/shubham-shewale/stock-dashboard/pkg/models"
)

func mockStocks() []models.Stock {
	return []models.Stock{
		{
			Symbol:             "AAPL",
			Name:               "Apple",
			Price:              150,
			PriceChange:        5,
			PriceChangePercent: 3.33,
			ChartData:          []float64{145, 147, 149, 150},
			Shares:             10,
			AveragePrice:       140,
		},
		{
			Symbol:             "MSFT",
			Name:               "Microsoft",
			Price:              300,
			PriceChange:        -2,
			PriceChangePercent: -0.67,
			ChartData:          []float64{302, 301, 299, 300},
			Shares:             5,
			AveragePrice:       290,
		},
	}
}

func setup() *state.Store {
	return state.New("USD", zap.NewNop())
}

func TestStore_NewIsEmpty(t *testing.T) {
	s := setup()
	st := s.State()
	if len(st.Stocks) != 0 || st.Selected != nil || st.PortfolioValue != 0 || st.Currency != "USD" {
		t.Errorf("unexpected initial state: %+v", st)
	}
}

func TestStore_SetStocks_PortfolioValue(t *testing.T) {
	s := setup()
	s.SetStocks(mockStocks())

	st := s.State()
	if diff := pretty.Compare(mockStocks(), st.Stocks); diff != "" {
		t.Errorf("Stocks: -want/+got:\n%s", diff)
	}
	if st.PortfolioValue != 3000 {
		t.Errorf("PortfolioValue = %v, want 3000", st.PortfolioValue)
	}

	s.UpdateStock("AAPL", models.Patch{Price: models.Float(160)})
	if got := s.State().PortfolioValue; got != 3100 {
		t.Errorf("PortfolioValue after update = %v, want 3100", got)
	}
}

func TestStore_SetStocks_Empty(t *testing.T) {
	s := setup()
	s.SetStocks(mockStocks())
	s.SetStocks(nil)

	st := s.State()
	if len(st.Stocks) != 0 || st.PortfolioValue != 0 {
		t.Errorf("expected empty set with value 0, got %+v", st)
	}
}

func TestStore_SetStocks_NaNPrice(t *testing.T) {
	s := setup()
	stocks := mockStocks()
	stocks[0].Price = math.NaN()
	s.SetStocks(stocks)

	if got := s.State().PortfolioValue; got != 1500 {
		t.Errorf("PortfolioValue = %v, want 1500", got)
	}
	if got, _ := s.Lookup("AAPL"); got.Price != 0 {
		t.Errorf("NaN price stored as %v, want 0", got.Price)
	}
}

func TestStore_SetStocks_DeduplicatesBySymbol(t *testing.T) {
	s := setup()
	stocks := append(mockStocks(), models.Stock{Symbol: "AAPL", Price: 1})
	s.SetStocks(stocks)

	if got := s.Symbols(); len(got) != 2 {
		t.Fatalf("Symbols = %v, want 2 entries", got)
	}
	if got, _ := s.Lookup("AAPL"); got.Price != 150 {
		t.Errorf("first AAPL should win, got price %v", got.Price)
	}
}

func TestStore_SetStocks_LeavesSelection(t *testing.T) {
	s := setup()
	s.SetStocks(mockStocks())
	sel := mockStocks()[0]
	s.SetSelectedStock(&sel)

	s.SetStocks(nil)
	if s.State().Selected == nil || s.State().Selected.Symbol != "AAPL" {
		t.Errorf("SetStocks must not touch the selection, got %+v", s.State().Selected)
	}
}

func TestStore_SetSelectedStock(t *testing.T) {
	s := setup()
	stock := mockStocks()[0]
	s.SetSelectedStock(&stock)

	if diff := pretty.Compare(&stock, s.State().Selected); diff != "" {
		t.Errorf("Selected: -want/+got:\n%s", diff)
	}

	s.SetSelectedStock(nil)
	if s.State().Selected != nil {
		t.Error("expected selection cleared")
	}
}

func TestStore_UpdateStock(t *testing.T) {
	s := setup()
	s.SetStocks(mockStocks())

	s.UpdateStock("AAPL", models.Patch{
		Price:              models.Float(160),
		PriceChange:        models.Float(10),
		PriceChangePercent: models.Float(6.67),
	})

	got, ok := s.Lookup("AAPL")
	if !ok {
		t.Fatal("AAPL missing after update")
	}
	want := mockStocks()[0]
	want.Price, want.PriceChange, want.PriceChangePercent = 160, 10, 6.67
	if diff := pretty.Compare(want, got); diff != "" {
		t.Errorf("UpdateStock: -want/+got:\n%s", diff)
	}
}

func TestStore_UpdateStockFunc_SeesCommittedRecord(t *testing.T) {
	s := setup()
	s.SetStocks(mockStocks())

	var seen models.Stock
	ok := s.UpdateStockFunc("MSFT", func(cur models.Stock) models.Patch {
		seen = cur
		return models.Patch{Price: models.Float(cur.Price + 1)}
	})
	if !ok {
		t.Fatal("MSFT should be tracked")
	}
	if seen.Price != 300 {
		t.Errorf("patch built from %v, want 300", seen.Price)
	}
	if got, _ := s.Lookup("MSFT"); got.Price != 301 {
		t.Errorf("expected 301, got %v", got.Price)
	}

	called := false
	if s.UpdateStockFunc("ZZZZ", func(models.Stock) models.Patch { called = true; return models.Patch{} }) {
		t.Error("unknown symbol reported as updated")
	}
	if called {
		t.Error("patch func ran for an unknown symbol")
	}
}

func TestStore_UpdateStock_RefreshesMatchingSelection(t *testing.T) {
	s := setup()
	s.SetStocks(mockStocks())
	sel := mockStocks()[0]
	s.SetSelectedStock(&sel)

	s.UpdateStock("AAPL", models.Patch{Price: models.Float(160)})

	st := s.State()
	updated, _ := st.Lookup("AAPL")
	if diff := pretty.Compare(&updated, st.Selected); diff != "" {
		t.Errorf("selection should equal updated record: -want/+got:\n%s", diff)
	}
}

func TestStore_UpdateStock_LeavesOtherSelection(t *testing.T) {
	s := setup()
	s.SetStocks(mockStocks())
	sel := mockStocks()[1]
	s.SetSelectedStock(&sel)

	s.UpdateStock("AAPL", models.Patch{Price: models.Float(160)})

	if got := s.State().Selected.Price; got != 300 {
		t.Errorf("MSFT selection changed to price %v", got)
	}
}

func TestStore_UpdateStock_UnknownSymbolIsNoop(t *testing.T) {
	s := setup()
	s.SetStocks(mockStocks())
	before := s.State()

	notified := false
	cancel := s.Subscribe(func(state.State) { notified = true })
	defer cancel()

	s.UpdateStock("GOOG", models.Patch{Price: models.Float(1)})

	after := s.State()
	if after.Version != before.Version {
		t.Errorf("version bumped on no-op: %d -> %d", before.Version, after.Version)
	}
	if diff := pretty.Compare(before, after); diff != "" {
		t.Errorf("state changed on no-op: -want/+got:\n%s", diff)
	}
	if notified {
		t.Error("subscriber notified on no-op")
	}
}

func TestStore_UpdateStock_DoesNotMutatePriorSnapshot(t *testing.T) {
	s := setup()
	s.SetStocks(mockStocks())
	before := s.State()

	s.UpdateStock("AAPL", models.Patch{ChartData: []float64{1, 2, 3, 4}})

	if before.Stocks[0].ChartData[0] != 145 {
		t.Errorf("prior snapshot was mutated: %v", before.Stocks[0].ChartData)
	}
}

func TestStore_Subscribe(t *testing.T) {
	s := setup()

	var versions []uint64
	cancel := s.Subscribe(func(st state.State) { versions = append(versions, st.Version) })

	s.SetStocks(mockStocks())
	s.UpdateStock("AAPL", models.Patch{Price: models.Float(151)})
	cancel()
	s.UpdateStock("AAPL", models.Patch{Price: models.Float(152)})

	if diff := pretty.Compare([]uint64{1, 2}, versions); diff != "" {
		t.Errorf("notifications: -want/+got:\n%s", diff)
	}
}

func TestStore_Subscribe_ReentrantMutation(t *testing.T) {
	s := setup()
	s.SetStocks(mockStocks())

	var once sync.Once
	cancel := s.Subscribe(func(st state.State) {
		if st.Selected != nil {
			return
		}
		once.Do(func() {
			first := st.Stocks[0]
			s.SetSelectedStock(&first)
		})
	})
	defer cancel()

	s.UpdateStock("MSFT", models.Patch{Price: models.Float(310)})

	st := s.State()
	if st.Selected == nil || st.Selected.Symbol != "AAPL" {
		t.Fatalf("re-entrant selection lost: %+v", st.Selected)
	}
	if got, _ := st.Lookup("MSFT"); got.Price != 310 {
		t.Errorf("outer update lost: MSFT price %v", got.Price)
	}
}

func TestStore_Subscribe_PanicIsContained(t *testing.T) {
	s := setup()
	cancel := s.Subscribe(func(state.State) { panic("boom") })
	defer cancel()

	s.SetStocks(mockStocks())
	if s.State().Version != 1 {
		t.Error("commit lost after subscriber panic")
	}
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	// Run with `go test -race ./...`
	s := setup()
	s.SetStocks(mockStocks())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.UpdateStock("AAPL", models.Patch{Shares: models.Float(float64(i))})
		}(i)
		go func() {
			defer wg.Done()
			s.SetStocks(mockStocks())
		}()
	}
	wg.Wait()

	if got := s.State().Version; got != 101 {
		t.Errorf("Version = %d, want 101 (every commit counted)", got)
	}
}

func TestStore_UpdateStock_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := setup()
		s.SetStocks(mockStocks())
		sym := rapid.SampledFrom([]string{"AAPL", "MSFT", "NVDA"}).Draw(t, "symbol")
		price := rapid.Float64Range(0, 1000).Draw(t, "price")
		shares := rapid.Float64Range(0, 100).Draw(t, "shares")

		before, had := s.Lookup(sym)
		prior := s.State()
		s.UpdateStock(sym, models.Patch{Price: &price, Shares: &shares})

		if !had {
			if s.State().Version != prior.Version {
				t.Fatalf("unknown symbol %s changed the store", sym)
			}
			return
		}
		after, _ := s.Lookup(sym)
		want := before
		want.Price, want.Shares = price, shares
		if diff := pretty.Compare(want, after); diff != "" {
			t.Fatalf("merge mismatch: -want/+got:\n%s", diff)
		}
		if got, want := s.State().PortfolioValue, models.PortfolioValue(s.State().Stocks); got != want {
			t.Fatalf("PortfolioValue = %v, want %v", got, want)
		}
	})
}
