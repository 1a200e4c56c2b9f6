package stream_test

import (
	"errors"
	"testing"

	"github.com/kylelemons/godebug/pretty"

	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/stream"
	"github.com/shubham-shewale/stock-dashboard/pkg/models"
)

func TestCommands_RoundTrip(t *testing.T) {
	for _, cmd := range []stream.Command{
		stream.Init{Symbols: []string{"AAPL", "MSFT"}},
		stream.UpdateSymbols{Symbols: []string{"TSLA"}},
		stream.Close{},
	} {
		b, err := stream.EncodeCommand(cmd)
		if err != nil {
			t.Fatalf("EncodeCommand(%T): %v", cmd, err)
		}
		got, err := stream.DecodeCommand(b)
		if err != nil {
			t.Fatalf("DecodeCommand(%s): %v", b, err)
		}
		if diff := pretty.Compare(cmd, got); diff != "" {
			t.Errorf("%T round trip (-want +got):\n%s", cmd, diff)
		}
	}
}

func TestDecodeCommand_WireForm(t *testing.T) {
	got, err := stream.DecodeCommand([]byte(`{"type":"update_symbols","data":{"symbols":["nvda"," aapl ","NVDA"]}}`))
	if err != nil {
		t.Fatalf("DecodeCommand: %v", err)
	}
	want := stream.UpdateSymbols{Symbols: []string{"NVDA", "AAPL"}}
	if diff := pretty.Compare(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestDecodeCommand_Invalid(t *testing.T) {
	for name, raw := range map[string]string{
		"unknown type": `{"type":"explode"}`,
		"missing data": `{"type":"init"}`,
		"wrong shape":  `{"type":"init","data":{"symbols":"AAPL"}}`,
		"not json":     `{type:init}`,
	} {
		if _, err := stream.DecodeCommand([]byte(raw)); !errors.Is(err, stream.ErrInvalidMessage) {
			t.Errorf("%s: expected ErrInvalidMessage, got %v", name, err)
		}
	}
}

func TestDecodeEvent(t *testing.T) {
	ev, err := stream.DecodeEvent([]byte(`{"type":"price_update","data":{"symbol":"AAPL","price":187.25,"volume":10}}`))
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	pu, ok := ev.(stream.PriceUpdate)
	if !ok || pu.Tick.Symbol != "AAPL" || pu.Tick.Price != "187.25" {
		t.Errorf("unexpected event %#v", ev)
	}

	for name, raw := range map[string]string{
		"no symbol":    `{"type":"price_update","data":{"price":1}}`,
		"no data":      `{"type":"price_update"}`,
		"unknown type": `{"type":"tick"}`,
	} {
		if _, err := stream.DecodeEvent([]byte(raw)); !errors.Is(err, stream.ErrInvalidMessage) {
			t.Errorf("%s: expected ErrInvalidMessage, got %v", name, err)
		}
	}
}

func TestEvents_RoundTrip(t *testing.T) {
	events := []stream.Event{
		stream.PriceUpdate{Tick: models.Tick{Symbol: "AAPL", Price: "1.5", Timestamp: 7}},
		stream.Opened{ConnID: "c1"},
		stream.Disconnected{ConnID: "c1", Clean: true},
	}
	for _, ev := range events {
		b, err := stream.EncodeEvent(ev)
		if err != nil {
			t.Fatalf("EncodeEvent(%T): %v", ev, err)
		}
		got, err := stream.DecodeEvent(b)
		if err != nil {
			t.Fatalf("DecodeEvent(%s): %v", b, err)
		}
		if diff := pretty.Compare(ev, got); diff != "" {
			t.Errorf("%T round trip (-want +got):\n%s", ev, diff)
		}
	}

	b, _ := stream.EncodeEvent(stream.Disconnected{Err: errors.New("reset")})
	got, _ := stream.DecodeEvent(b)
	if d := got.(stream.Disconnected); d.Clean || d.Err == nil || d.Err.Error() != "reset" {
		t.Errorf("disconnect error lost: %+v", d)
	}
}

func TestParsePriceFrame(t *testing.T) {
	cases := []struct {
		frame string
		ok    bool
		price models.Number
	}{
		{`{"event":"price","symbol":"AAPL","price":187.3}`, true, "187.3"},
		{`{"symbol":"MSFT","price":"300"}`, true, "300"},
		{`{"event":"price","symbol":"AAPL"}`, true, ""},
		{`{"event":"subscribe-status","status":"ok","success":[]}`, false, ""},
		{`{"event":"heartbeat","status":"ok"}`, false, ""},
		{`{"symbol":"AAPL"}`, false, ""},
		{`[1,2]`, false, ""},
	}
	for _, tc := range cases {
		tick, ok := stream.ParsePriceFrame([]byte(tc.frame))
		if ok != tc.ok || tick.Price != tc.price {
			t.Errorf("ParsePriceFrame(%s) = %+v, %v", tc.frame, tick, ok)
		}
	}
}
