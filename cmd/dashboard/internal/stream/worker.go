package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// worker owns one upstream connection for its whole life. It never touches
// the store: everything it learns leaves through events, and everything it
// is told arrives through commands.
type worker struct {
	id        string
	logger    *zap.Logger
	dialer    Dialer
	heartbeat time.Duration

	commands chan Command
	events   chan Event
	cancel   context.CancelFunc
	done     chan struct{} // closed once the supervisor has drained events
}

func newWorker(logger *zap.Logger, dialer Dialer, heartbeat time.Duration) *worker {
	id := uuid.NewString()
	return &worker{
		id:        id,
		logger:    logger.With(zap.String("conn_id", id)),
		dialer:    dialer,
		heartbeat: heartbeat,
		commands:  make(chan Command, 16),
		events:    make(chan Event, 64),
		done:      make(chan struct{}),
	}
}

// start runs the worker in its own goroutine.
func (w *worker) start(init Init) {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go w.run(ctx, init)
}

// send queues a command without blocking the caller.
func (w *worker) send(cmd Command) bool {
	select {
	case w.commands <- cmd:
		return true
	default:
		w.logger.Warn("Stream worker command queue full, dropping", zap.String("type", cmd.commandType()))
		return false
	}
}

// stop asks for a clean close and cancels whatever the worker is blocked on.
func (w *worker) stop() {
	w.send(Close{})
	w.cancel()
}

func (w *worker) run(ctx context.Context, init Init) {
	defer close(w.events)
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Stream worker panicked", zap.Any("panic", r))
			w.emit(Disconnected{ConnID: w.id, Err: fmt.Errorf("worker panic: %v", r)})
		}
	}()

	conn, err := w.dialer.Dial(ctx)
	if err != nil {
		w.emit(Disconnected{ConnID: w.id, Clean: ctx.Err() != nil, Err: err})
		return
	}
	defer conn.Close()

	if err := w.subscribe(ctx, conn, init.Symbols); err != nil {
		w.emit(Disconnected{ConnID: w.id, Clean: ctx.Err() != nil, Err: err})
		return
	}
	w.emit(Opened{ConnID: w.id})

	frames := make(chan []byte)
	readErr := make(chan error, 1)
	go w.read(ctx, conn, frames, readErr)

	ticker := time.NewTicker(w.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.emit(Disconnected{ConnID: w.id, Clean: true})
			return

		case cmd := <-w.commands:
			switch m := cmd.(type) {
			case Init:
				err = w.resubscribe(ctx, conn, m.Symbols)
			case UpdateSymbols:
				err = w.resubscribe(ctx, conn, m.Symbols)
			case Close:
				w.emit(Disconnected{ConnID: w.id, Clean: true})
				return
			}
			if err != nil {
				w.emit(Disconnected{ConnID: w.id, Clean: ctx.Err() != nil, Err: err})
				return
			}

		case frame := <-frames:
			if tick, ok := ParsePriceFrame(frame); ok {
				w.emit(PriceUpdate{Tick: tick})
			}

		case err := <-readErr:
			w.emit(Disconnected{ConnID: w.id, Clean: ctx.Err() != nil, Err: err})
			return

		case <-ticker.C:
			if err := w.write(ctx, conn, heartbeatFrame()); err != nil {
				w.logger.Warn("Heartbeat failed", zap.Error(err))
				w.emit(Disconnected{ConnID: w.id, Clean: ctx.Err() != nil, Err: err})
				return
			}
		}
	}
}

// read pumps frames until the connection fails or the worker exits.
func (w *worker) read(ctx context.Context, conn Conn, frames chan<- []byte, readErr chan<- error) {
	for {
		frame, err := conn.ReadFrame(ctx)
		if err != nil {
			readErr <- err
			return
		}
		select {
		case frames <- frame:
		case <-ctx.Done():
			return
		}
	}
}

func (w *worker) subscribe(ctx context.Context, conn Conn, symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}
	w.logger.Info("Subscribing", zap.Strings("symbols", symbols))
	return w.write(ctx, conn, subscribeFrame(symbols))
}

func (w *worker) resubscribe(ctx context.Context, conn Conn, symbols []string) error {
	if err := w.write(ctx, conn, unsubscribeAllFrame()); err != nil {
		return err
	}
	return w.subscribe(ctx, conn, symbols)
}

func (w *worker) write(ctx context.Context, conn Conn, frame ControlFrame) error {
	b, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return conn.WriteFrame(ctx, b)
}

// emit hands an event to the supervisor, which drains until events closes.
func (w *worker) emit(ev Event) {
	w.events <- ev
}
