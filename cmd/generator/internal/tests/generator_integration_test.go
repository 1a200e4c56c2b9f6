package tests

import (
	"context"
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-dashboard/cmd/generator/internal/generator"
	"github.com/shubham-shewale/stock-dashboard/cmd/generator/internal/testutils"
	"github.com/shubham-shewale/stock-dashboard/pkg/models"
)

// The dashboard's Kafka upstream drops updates whose SeqID does not grow per
// symbol, so the generator must emit strictly increasing ids in key order.
func TestGenerator_SequenceMonotonicPerSymbol(t *testing.T) {
	mockWriter := &testutils.MockKafkaWriter{}
	mockClock := &testutils.MockClock{CurrentTime: time.Now()}
	rnd := generator.RealRand{Rand: rand.New(rand.NewSource(time.Now().UnixNano()))}

	gen := generator.NewStockGenerator(zap.NewNop(), mockWriter,
		map[string]float64{"MSFT": 420, "NVDA": 120, "TSLA": 250}, time.Millisecond, rnd, mockClock)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond) // Let it generate a few
		cancel()
	}()
	gen.Run(ctx)

	mockWriter.Mu.Lock()
	msgs := append([]kafka.Message(nil), mockWriter.Messages...)
	mockWriter.Mu.Unlock()

	if len(msgs) == 0 {
		t.Fatal("Generator failed to produce any messages")
	}

	last := map[string]int64{}
	for _, msg := range msgs {
		var u models.StockUpdate
		if err := json.Unmarshal(msg.Value, &u); err != nil {
			t.Fatalf("invalid payload: %v", err)
		}
		if u.SeqID != last[u.Symbol]+1 {
			t.Fatalf("%s: expected SeqID %d, got %d", u.Symbol, last[u.Symbol]+1, u.SeqID)
		}
		last[u.Symbol] = u.SeqID
		if u.Price <= 0 {
			t.Fatalf("%s: non-positive price %v", u.Symbol, u.Price)
		}
	}
	if len(last) != 3 {
		t.Errorf("Expected all 3 symbols, got %v", last)
	}
}
