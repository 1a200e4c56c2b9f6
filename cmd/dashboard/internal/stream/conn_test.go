package stream_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/stream"
	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/testutils"
)

// upstream is a minimal price feed: it answers every subscribe frame with one
// price frame per symbol and records everything it receives.
func upstream(t *testing.T, received chan<- stream.ControlFrame) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var ctl stream.ControlFrame
			if err := conn.ReadJSON(&ctl); err != nil {
				return
			}
			received <- ctl
			if ctl.Action != stream.ActionSubscribe {
				continue
			}
			for _, s := range strings.Split(ctl.Params.Symbols, ",") {
				conn.WriteJSON(map[string]any{"event": "price", "symbol": s, "price": 42.5})
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebsocketDialer_EndToEnd(t *testing.T) {
	received := make(chan stream.ControlFrame, 16)
	srv := upstream(t, received)

	dialer := &stream.WebsocketDialer{URL: "ws" + strings.TrimPrefix(srv.URL, "http")}
	rec := &tickRecorder{}
	client := stream.NewClient(zap.NewNop(), dialer, rec.handle, stream.Options{})
	defer client.Close()

	client.Initialize([]string{"AAPL", "MSFT"})

	select {
	case ctl := <-received:
		if ctl.Action != "subscribe" || ctl.Params.Symbols != "AAPL,MSFT" {
			t.Errorf("unexpected first frame %+v", ctl)
		}
	case <-time.After(wait):
		t.Fatal("upstream never received subscribe")
	}

	if !testutils.Eventually(func() bool { return rec.count() == 2 }, wait) {
		t.Fatalf("expected 2 ticks, got %d", rec.count())
	}
	if ticks := rec.all(); ticks[0].Symbol != "AAPL" || ticks[0].Price != "42.5" {
		t.Errorf("unexpected tick %+v", ticks[0])
	}
}

func TestWebsocketDialer_ReadTimeout(t *testing.T) {
	// accepts the connection, then never sends anything
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	dialer := &stream.WebsocketDialer{
		URL:         "ws" + strings.TrimPrefix(srv.URL, "http"),
		ReadTimeout: 50 * time.Millisecond,
	}
	conn, err := dialer.Dial(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	start := time.Now()
	if _, err := conn.ReadFrame(t.Context()); err == nil {
		t.Fatal("expected a read error from a silent upstream")
	}
	if elapsed := time.Since(start); elapsed > wait {
		t.Errorf("read blocked for %v", elapsed)
	}
}

func TestWebsocketDialer_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	dialer := &stream.WebsocketDialer{URL: url}
	if _, err := dialer.Dial(t.Context()); err == nil {
		t.Error("expected dial error")
	}
}
