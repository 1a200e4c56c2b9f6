// Package generator simulates a market feed: it random-walks a price per
// symbol and publishes each step to Kafka as a models.StockUpdate, the
// format the dashboard's Kafka upstream consumes.
package generator

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-dashboard/pkg/models"
)

const (
	// DefaultStep is the largest move per tick as a fraction of the price.
	DefaultStep = 0.005
	minPrice    = 0.01
)

type StockGenerator struct {
	logger   *zap.Logger
	writer   KafkaWriter
	symbols  []string
	prices   map[string]float64
	seq      map[string]int64
	step     float64
	interval time.Duration
	rand     Rand
	clock    Clock
}

// NewStockGenerator walks every symbol in basePrices. One round, a tick for
// each symbol, is published every interval.
func NewStockGenerator(
	logger *zap.Logger,
	writer KafkaWriter,
	basePrices map[string]float64,
	interval time.Duration,
	rnd Rand,
	clock Clock,
) *StockGenerator {
	prices := make(map[string]float64, len(basePrices))
	symbols := make([]string, 0, len(basePrices))
	for s, p := range basePrices {
		sym := models.NormalizeSymbols([]string{s})
		if len(sym) == 0 {
			continue
		}
		prices[sym[0]] = p
		symbols = append(symbols, sym[0])
	}
	sort.Strings(symbols)

	return &StockGenerator{
		logger:   logger,
		writer:   writer,
		symbols:  symbols,
		prices:   prices,
		seq:      make(map[string]int64),
		step:     DefaultStep,
		interval: interval,
		rand:     rnd,
		clock:    clock,
	}
}

// Symbols returns the simulated symbols in publish order.
func (sg *StockGenerator) Symbols() []string {
	return append([]string(nil), sg.symbols...)
}

func (sg *StockGenerator) Run(ctx context.Context) {
	sg.logger.Info("Generator Started", zap.Strings("symbols", sg.symbols), zap.Duration("interval", sg.interval))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if len(sg.symbols) == 0 {
				sg.clock.Sleep(1 * time.Second)
				continue
			}
			if err := sg.Round(ctx); err != nil && ctx.Err() == nil {
				sg.logger.Error("Kafka Write Error", zap.Error(err))
			}
			sg.clock.Sleep(sg.interval)
		}
	}
}

// Round advances every symbol one step and publishes the batch.
func (sg *StockGenerator) Round(ctx context.Context) error {
	now := sg.clock.Now().UnixMicro()
	msgs := make([]kafka.Message, 0, len(sg.symbols))
	for _, symbol := range sg.symbols {
		update := sg.next(symbol, now)
		payload, err := json.Marshal(update)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(symbol), // Key ensures partition ordering
			Value: payload,
		})
	}
	return sg.writer.WriteMessages(ctx, msgs...)
}

// next moves symbol by up to ±step of its price, rounded to cents.
func (sg *StockGenerator) next(symbol string, now int64) models.StockUpdate {
	p := sg.prices[symbol]
	move := (sg.rand.Float64()*2 - 1) * sg.step * p
	price, _ := decimal.NewFromFloat(p + move).Round(2).Float64()
	if price < minPrice {
		price = minPrice
	}
	sg.prices[symbol] = price
	sg.seq[symbol]++

	return models.StockUpdate{
		Symbol:    symbol,
		Price:     price,
		Timestamp: now,
		SeqID:     sg.seq[symbol],
	}
}
