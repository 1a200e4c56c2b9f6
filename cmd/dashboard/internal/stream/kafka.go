package stream

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/shubham-shewale/stock-dashboard/pkg/models"
)

// KafkaReader abstracts the tick topic consumer.
type KafkaReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaDialer reads ticks from a Kafka topic instead of a websocket. Each
// connection joins its own consumer group starting at the newest offset, so
// every dashboard sees every tick. Subscribe and unsubscribe frames become a
// local symbol filter.
type KafkaDialer struct {
	Brokers []string
	Topic   string
	GroupID string

	// NewReader builds the consumer; nil means kafka.NewReader.
	NewReader func(cfg kafka.ReaderConfig) KafkaReader
}

var _ Dialer = (*KafkaDialer)(nil)

func (d *KafkaDialer) Dial(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := kafka.ReaderConfig{
		Brokers:     d.Brokers,
		Topic:       d.Topic,
		GroupID:     d.GroupID + "-" + uuid.NewString(),
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     200 * time.Millisecond,
		// 3s heartbeat, 10s session timeout for responsive rebalancing
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    10 * time.Second,
	}
	newReader := d.NewReader
	if newReader == nil {
		newReader = func(cfg kafka.ReaderConfig) KafkaReader { return kafka.NewReader(cfg) }
	}
	return newKafkaConn(newReader(cfg)), nil
}

type kafkaConn struct {
	reader KafkaReader

	mu      sync.Mutex
	symbols map[string]bool
	closed  bool

	// only touched by the reading goroutine
	lastSeq map[string]int64
}

func newKafkaConn(reader KafkaReader) *kafkaConn {
	return &kafkaConn{
		reader:  reader,
		symbols: make(map[string]bool),
		lastSeq: make(map[string]int64),
	}
}

// ReadFrame returns the next tick for a subscribed symbol, rendered as an
// upstream price frame. Redelivered updates (SeqID not above the last seen)
// are skipped.
func (c *kafkaConn) ReadFrame(ctx context.Context) ([]byte, error) {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			return nil, err
		}

		var update models.StockUpdate
		if err := json.Unmarshal(m.Value, &update); err != nil {
			continue
		}
		symbol := strings.ToUpper(update.Symbol)
		if !c.subscribed(symbol) {
			continue
		}
		if update.SeqID > 0 {
			if update.SeqID <= c.lastSeq[symbol] {
				continue
			}
			c.lastSeq[symbol] = update.SeqID
		}

		frame, err := json.Marshal(map[string]any{
			"event":     "price",
			"symbol":    symbol,
			"price":     update.Price,
			"timestamp": update.Timestamp,
		})
		if err != nil {
			continue
		}
		return frame, nil
	}
}

// WriteFrame applies a control frame to the local filter.
func (c *kafkaConn) WriteFrame(ctx context.Context, frame []byte) error {
	var ctl ControlFrame
	if err := json.Unmarshal(frame, &ctl); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	if ctl.Params == nil {
		return nil
	}

	symbols := strings.Split(ctl.Params.Symbols, ",")
	switch ctl.Action {
	case ActionSubscribe:
		for _, s := range models.NormalizeSymbols(symbols) {
			c.symbols[s] = true
		}
	case ActionUnsubscribe:
		if strings.TrimSpace(ctl.Params.Symbols) == AllSymbols {
			clear(c.symbols)
			return nil
		}
		for _, s := range models.NormalizeSymbols(symbols) {
			delete(c.symbols, s)
		}
	}
	return nil
}

func (c *kafkaConn) subscribed(symbol string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.symbols[symbol]
}

func (c *kafkaConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.reader.Close()
}
