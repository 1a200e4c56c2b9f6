package testutils

import (
	"sync"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/state"
	"github.com/shubham-shewale/stock-dashboard/pkg/models"
)

// SpyStore wraps a real store and counts mutator calls.
type SpyStore struct {
	*state.Store

	Mu          sync.Mutex
	SetCalls    int
	SelectCalls int
	UpdateCalls int

	// BeforeUpdate runs ahead of every UpdateStockFunc commit.
	BeforeUpdate func(symbol string)
}

func NewSpyStore(stocks ...models.Stock) *SpyStore {
	s := &SpyStore{Store: state.New("USD", zap.NewNop())}
	if len(stocks) > 0 {
		s.Store.SetStocks(stocks)
	}
	return s
}

func (s *SpyStore) SetStocks(stocks []models.Stock) {
	s.Mu.Lock()
	s.SetCalls++
	s.Mu.Unlock()
	s.Store.SetStocks(stocks)
}

func (s *SpyStore) SetSelectedStock(stock *models.Stock) {
	s.Mu.Lock()
	s.SelectCalls++
	s.Mu.Unlock()
	s.Store.SetSelectedStock(stock)
}

func (s *SpyStore) UpdateStock(symbol string, p models.Patch) {
	s.Mu.Lock()
	s.UpdateCalls++
	s.Mu.Unlock()
	s.Store.UpdateStock(symbol, p)
}

func (s *SpyStore) UpdateStockFunc(symbol string, patch func(models.Stock) models.Patch) bool {
	s.Mu.Lock()
	s.UpdateCalls++
	before := s.BeforeUpdate
	s.Mu.Unlock()
	if before != nil {
		before(symbol)
	}
	return s.Store.UpdateStockFunc(symbol, patch)
}

// Mutations returns the total number of mutator calls.
func (s *SpyStore) Mutations() int {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.SetCalls + s.SelectCalls + s.UpdateCalls
}
