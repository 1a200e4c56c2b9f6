package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shubham-shewale/stock-dashboard/pkg/models"
)

// Message kinds crossing the supervisor/worker boundary.
const (
	TypeInit          = "init"
	TypeUpdateSymbols = "update_symbols"
	TypeClose         = "close"

	TypePriceUpdate  = "price_update"
	TypeOpened       = "opened"
	TypeDisconnected = "disconnected"
)

// ErrInvalidMessage is returned for a message that is not one of the known
// kinds or whose payload has the wrong shape.
var ErrInvalidMessage = errors.New("invalid stream message")

// Command is a message from the supervisor to the worker. The set is closed:
// Init, UpdateSymbols and Close.
type Command interface {
	commandType() string
}

// Event is a message from the worker to the supervisor. The set is closed:
// PriceUpdate, Opened and Disconnected.
type Event interface {
	eventType() string
}

// Init starts a connection subscribed to Symbols.
type Init struct {
	Symbols []string `json:"symbols"`
}

// UpdateSymbols replaces the subscription on the open connection.
type UpdateSymbols struct {
	Symbols []string `json:"symbols"`
}

// Close asks the worker to send a close notice and exit.
type Close struct{}

// PriceUpdate carries one tick as received from the upstream.
type PriceUpdate struct {
	Tick models.Tick
}

// Opened reports that the connection is up and subscribed.
type Opened struct {
	ConnID string `json:"connId"`
}

// Disconnected reports the end of a connection. Clean is true only when the
// close was requested.
type Disconnected struct {
	ConnID string
	Clean  bool
	Err    error
}

func (Init) commandType() string          { return TypeInit }
func (UpdateSymbols) commandType() string { return TypeUpdateSymbols }
func (Close) commandType() string         { return TypeClose }

func (PriceUpdate) eventType() string  { return TypePriceUpdate }
func (Opened) eventType() string       { return TypeOpened }
func (Disconnected) eventType() string { return TypeDisconnected }

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type disconnectedData struct {
	ConnID string `json:"connId,omitempty"`
	Clean  bool   `json:"clean"`
	Error  string `json:"error,omitempty"`
}

// EncodeCommand renders cmd as {type, data}.
func EncodeCommand(cmd Command) ([]byte, error) {
	switch cmd.(type) {
	case Init, UpdateSymbols:
		return encode(cmd.commandType(), cmd)
	case Close:
		return encode(TypeClose, nil)
	}
	return nil, fmt.Errorf("%w: command %T", ErrInvalidMessage, cmd)
}

// DecodeCommand parses and validates a {type, data} command.
func DecodeCommand(b []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	switch env.Type {
	case TypeInit:
		var m Init
		if err := decodeData(env, &m); err != nil {
			return nil, err
		}
		m.Symbols = models.NormalizeSymbols(m.Symbols)
		return m, nil
	case TypeUpdateSymbols:
		var m UpdateSymbols
		if err := decodeData(env, &m); err != nil {
			return nil, err
		}
		m.Symbols = models.NormalizeSymbols(m.Symbols)
		return m, nil
	case TypeClose:
		return Close{}, nil
	}
	return nil, fmt.Errorf("%w: unknown command type %q", ErrInvalidMessage, env.Type)
}

// EncodeEvent renders ev as {type, data}.
func EncodeEvent(ev Event) ([]byte, error) {
	switch m := ev.(type) {
	case PriceUpdate:
		return encode(TypePriceUpdate, m.Tick)
	case Opened:
		return encode(TypeOpened, m)
	case Disconnected:
		d := disconnectedData{ConnID: m.ConnID, Clean: m.Clean}
		if m.Err != nil {
			d.Error = m.Err.Error()
		}
		return encode(TypeDisconnected, d)
	}
	return nil, fmt.Errorf("%w: event %T", ErrInvalidMessage, ev)
}

// DecodeEvent parses and validates a {type, data} event. A price update
// must name a symbol; its price is validated later, when it is applied.
func DecodeEvent(b []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	switch env.Type {
	case TypePriceUpdate:
		var tick models.Tick
		if err := decodeData(env, &tick); err != nil {
			return nil, err
		}
		if err := validateTick(tick); err != nil {
			return nil, err
		}
		return PriceUpdate{Tick: tick}, nil
	case TypeOpened:
		var m Opened
		if len(env.Data) > 0 {
			if err := decodeData(env, &m); err != nil {
				return nil, err
			}
		}
		return m, nil
	case TypeDisconnected:
		var d disconnectedData
		if err := decodeData(env, &d); err != nil {
			return nil, err
		}
		m := Disconnected{ConnID: d.ConnID, Clean: d.Clean}
		if d.Error != "" {
			m.Err = errors.New(d.Error)
		}
		return m, nil
	}
	return nil, fmt.Errorf("%w: unknown event type %q", ErrInvalidMessage, env.Type)
}

func validateTick(t models.Tick) error {
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("%w: price update without symbol", ErrInvalidMessage)
	}
	return nil
}

func encode(kind string, data any) ([]byte, error) {
	env := envelope{Type: kind}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

func decodeData(env envelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%w: %s without data", ErrInvalidMessage, env.Type)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidMessage, env.Type, err)
	}
	return nil
}
