// Package stream keeps one upstream push connection alive and turns its
// price frames into ticks. A supervisor (Client) runs the connection state
// machine and the reconnect policy; a worker goroutine owns the socket. The
// two talk only through typed Command and Event messages.
package stream

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-dashboard/pkg/models"
)

// State of the streaming client.
type State int

const (
	Idle State = iota
	Connecting
	Subscribed
	Reconnecting
	Closing
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Subscribed:
		return "subscribed"
	case Reconnecting:
		return "reconnecting"
	case Closing:
		return "closing"
	case Terminated:
		return "terminated"
	}
	return "unknown"
}

const (
	DefaultHeartbeat   = 30 * time.Second
	DefaultMaxAttempts = 2

	// closeWait bounds how long Close waits for the worker to drain.
	closeWait = 2 * time.Second
)

// DefaultBackoff starts at 2s and doubles up to a minute.
var DefaultBackoff = Backoff{Base: 2 * time.Second, Max: 60 * time.Second}

// TickHandler receives every tick while the client is subscribed, in
// arrival order.
type TickHandler func(models.Tick)

// Options tune the client. Zero values take the defaults.
type Options struct {
	Heartbeat   time.Duration
	Backoff     Backoff
	MaxAttempts int
	Clock       Clock
}

func (o Options) withDefaults() Options {
	if o.Heartbeat <= 0 {
		o.Heartbeat = DefaultHeartbeat
	}
	if o.Backoff.Base <= 0 {
		o.Backoff = DefaultBackoff
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Clock == nil {
		o.Clock = RealClock{}
	}
	return o
}

// Client supervises the streaming connection.
//
// Unclean closes are retried with exponential backoff, at most MaxAttempts
// times in a row. A connection that reaches Subscribed resets the counter.
// Once the ceiling is hit the client goes back to Idle with a fresh counter
// and waits for a manual Initialize.
type Client struct {
	logger  *zap.Logger
	dialer  Dialer
	onTick  TickHandler
	options Options

	mu       sync.Mutex
	state    State
	symbols  []string
	attempts int
	worker   *worker
	timer    Timer
}

func NewClient(logger *zap.Logger, dialer Dialer, onTick TickHandler, options Options) *Client {
	if onTick == nil {
		onTick = func(models.Tick) {}
	}
	return &Client{
		logger:  logger,
		dialer:  dialer,
		onTick:  onTick,
		options: options.withDefaults(),
		state:   Idle,
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Idle reports whether the client has no connection and none pending, as
// before Initialize or after the reconnect ceiling.
func (c *Client) Idle() bool {
	return c.State() == Idle
}

// Symbols returns the symbols the client is (or will be) subscribed to.
func (c *Client) Symbols() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.symbols...)
}

// Attempts returns the automatic reconnects made since the last reset.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Initialize connects and subscribes to symbols. While a connection is
// already being made or open it only swaps the subscription. It resets the
// reconnect counter.
func (c *Client) Initialize(symbols []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Terminated || c.state == Closing {
		return
	}
	c.symbols = models.NormalizeSymbols(symbols)
	c.attempts = 0

	switch c.state {
	case Idle, Reconnecting:
		c.connectLocked()
	case Connecting, Subscribed:
		c.worker.send(Init{Symbols: c.symbols})
	}
}

// UpdateSymbols swaps the subscription on the open connection, or connects
// when there is none. While a reconnect is pending the new set is used by
// that reconnect.
func (c *Client) UpdateSymbols(symbols []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Terminated || c.state == Closing {
		return
	}
	c.symbols = models.NormalizeSymbols(symbols)

	switch c.state {
	case Idle:
		c.connectLocked()
	case Connecting, Subscribed:
		c.worker.send(UpdateSymbols{Symbols: c.symbols})
	}
}

// Close tears the connection down and cancels any pending reconnect. It is
// idempotent, and every later call is ignored. No tick is delivered after it
// returns.
func (c *Client) Close() {
	c.mu.Lock()
	if c.state == Terminated || c.state == Closing {
		c.mu.Unlock()
		return
	}
	c.state = Closing
	c.stopTimerLocked()
	w := c.worker
	c.worker = nil
	c.mu.Unlock()

	if w != nil {
		w.stop()
		select {
		case <-w.done:
		case <-time.After(closeWait):
			c.logger.Warn("Stream worker did not stop in time", zap.String("conn_id", w.id))
		}
	}

	c.mu.Lock()
	c.state = Terminated
	c.mu.Unlock()
	c.logger.Info("Stream closed")
}

func (c *Client) connectLocked() {
	c.stopTimerLocked()
	w := newWorker(c.logger, c.dialer, c.options.Heartbeat)
	c.worker = w
	c.state = Connecting
	w.start(Init{Symbols: c.symbols})
	go c.supervise(w)
}

func (c *Client) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// supervise drains the events of one worker. Events from a worker that is
// no longer current are discarded.
func (c *Client) supervise(w *worker) {
	defer close(w.done)
	for ev := range w.events {
		switch m := ev.(type) {
		case Opened:
			c.opened(w)
		case PriceUpdate:
			if err := validateTick(m.Tick); err != nil {
				c.logger.Debug("Dropping malformed tick", zap.Error(err))
				continue
			}
			if c.current(w, Subscribed) {
				c.onTick(m.Tick)
			}
		case Disconnected:
			c.disconnected(w, m)
		}
	}
}

func (c *Client) current(w *worker, state State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.worker == w && c.state == state
}

func (c *Client) opened(w *worker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.worker != w || c.state != Connecting {
		return
	}
	c.state = Subscribed
	c.attempts = 0
	c.logger.Info("Stream subscribed", zap.String("conn_id", w.id), zap.Strings("symbols", c.symbols))
}

func (c *Client) disconnected(w *worker, m Disconnected) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.worker != w {
		return
	}
	c.worker = nil

	if m.Clean {
		c.state = Idle
		return
	}

	c.attempts++
	if c.attempts > c.options.MaxAttempts {
		c.logger.Warn("Stream reconnect ceiling reached, giving up",
			zap.Int("max_attempts", c.options.MaxAttempts), zap.Error(m.Err))
		c.attempts = 0
		c.state = Idle
		return
	}

	delay := c.options.Backoff.Delay(c.attempts)
	c.logger.Warn("Stream disconnected, scheduling reconnect",
		zap.Int("attempt", c.attempts), zap.Duration("delay", delay), zap.Error(m.Err))
	c.state = Reconnecting
	c.timer = c.options.Clock.AfterFunc(delay, c.reconnect)
}

func (c *Client) reconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Reconnecting {
		return
	}
	c.timer = nil
	c.connectLocked()
}
