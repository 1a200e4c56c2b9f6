package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shubham-shewale/stock-dashboard/pkg/models"
)

// Conn is one upstream push connection. Writes may come from more than one
// goroutine; reads come from one.
type Conn interface {
	ReadFrame(ctx context.Context) ([]byte, error)
	WriteFrame(ctx context.Context, frame []byte) error
	// Close sends a close notice and releases the connection.
	Close() error
}

// Dialer opens upstream connections.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// ErrConnClosed is returned by a Conn used after Close.
var ErrConnClosed = errors.New("connection closed")

// Upstream control actions.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionHeartbeat   = "heartbeat"

	// AllSymbols unsubscribes everything.
	AllSymbols = "*"
)

// ControlFrame is an outgoing upstream control message.
type ControlFrame struct {
	Action string         `json:"action"`
	Params *ControlParams `json:"params,omitempty"`
}

// ControlParams lists symbols comma separated, e.g. "AAPL,MSFT".
type ControlParams struct {
	Symbols string `json:"symbols"`
}

func subscribeFrame(symbols []string) ControlFrame {
	return ControlFrame{Action: ActionSubscribe, Params: &ControlParams{Symbols: strings.Join(symbols, ",")}}
}

func unsubscribeAllFrame() ControlFrame {
	return ControlFrame{Action: ActionUnsubscribe, Params: &ControlParams{Symbols: AllSymbols}}
}

func heartbeatFrame() ControlFrame {
	return ControlFrame{Action: ActionHeartbeat}
}

// PriceFrame is an incoming upstream message. Only price events matter;
// subscribe-status and heartbeat acknowledgements are ignored.
type PriceFrame struct {
	Event string `json:"event"`
	models.Tick
}

// ParsePriceFrame extracts a tick from an upstream frame. It reports false
// for frames that are not price events or that do not decode.
func ParsePriceFrame(frame []byte) (models.Tick, bool) {
	var f PriceFrame
	if err := json.Unmarshal(frame, &f); err != nil {
		return models.Tick{}, false
	}
	if f.Event == "price" && f.Symbol != "" {
		return f.Tick, true
	}
	if f.Event == "" && f.Symbol != "" && f.Price != "" {
		return f.Tick, true
	}
	return models.Tick{}, false
}

// WebsocketDialer dials a websocket upstream, e.g.
// wss://ws.twelvedata.com/v1/quotes/price?apikey=KEY.
//
// ReadTimeout bounds the silence between two frames. The upstream answers
// every heartbeat, so zero means twice DefaultHeartbeat.
type WebsocketDialer struct {
	URL          string
	Header       http.Header
	Dialer       *websocket.Dialer
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
}

var _ Dialer = (*WebsocketDialer)(nil)

func (d *WebsocketDialer) Dial(ctx context.Context) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, d.URL, d.Header)
	if err != nil {
		return nil, err
	}
	writeTimeout := d.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	readTimeout := d.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 2 * DefaultHeartbeat
	}
	return &wsConn{conn: conn, writeTimeout: writeTimeout, readTimeout: readTimeout}, nil
}

type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	readTimeout  time.Duration

	mu     sync.Mutex // serializes writers
	closed bool
}

// ReadFrame waits at most readTimeout for the next frame; every frame
// pushes the deadline out again.
func (c *wsConn) ReadFrame(ctx context.Context) ([]byte, error) {
	c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	_, msg, err := c.conn.ReadMessage()
	return msg, err
}

func (c *wsConn) WriteFrame(ctx context.Context, frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.conn.Close()
}
