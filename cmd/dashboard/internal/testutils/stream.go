package testutils

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/stream"
)

// MockConn is an in-memory upstream connection. Tests push frames with
// Push and break it with Fail.
type MockConn struct {
	Mu      sync.Mutex
	Written []stream.ControlFrame
	Closed  bool

	// ReadTimeout, when set, fails a read that sees no frame for that long,
	// like a socket read deadline.
	ReadTimeout time.Duration
	writeErr    error

	frames chan []byte
	failed chan error
	closed chan struct{}
	once   sync.Once
}

func NewMockConn() *MockConn {
	return &MockConn{
		frames: make(chan []byte, 64),
		failed: make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (m *MockConn) ReadFrame(ctx context.Context) ([]byte, error) {
	var deadline <-chan time.Time
	if m.ReadTimeout > 0 {
		timer := time.NewTimer(m.ReadTimeout)
		defer timer.Stop()
		deadline = timer.C
	}
	select {
	case <-deadline:
		return nil, ErrReadTimeout
	case f := <-m.frames:
		return f, nil
	case err := <-m.failed:
		return nil, err
	case <-m.closed:
		return nil, stream.ErrConnClosed
	}
}

func (m *MockConn) WriteFrame(ctx context.Context, frame []byte) error {
	var ctl stream.ControlFrame
	if err := json.Unmarshal(frame, &ctl); err != nil {
		return err
	}
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Closed {
		return stream.ErrConnClosed
	}
	if m.writeErr != nil {
		return m.writeErr
	}
	m.Written = append(m.Written, ctl)
	return nil
}

func (m *MockConn) Close() error {
	m.once.Do(func() {
		m.Mu.Lock()
		m.Closed = true
		m.Mu.Unlock()
		close(m.closed)
	})
	return nil
}

// Push delivers a raw upstream frame.
func (m *MockConn) Push(frame string) { m.frames <- []byte(frame) }

// Fail makes the next read return err, as a dropped connection would.
func (m *MockConn) Fail(err error) { m.failed <- err }

// FailWrites makes every later write return err, as a dead peer would once
// the send buffer fills.
func (m *MockConn) FailWrites(err error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.writeErr = err
}

// Frames returns a copy of the control frames written so far.
func (m *MockConn) Frames() []stream.ControlFrame {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return append([]stream.ControlFrame(nil), m.Written...)
}

func (m *MockConn) IsClosed() bool {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.Closed
}

// ErrReadTimeout is what MockConn returns when ReadTimeout passes silently.
var ErrReadTimeout = errors.New("i/o timeout")

// ErrDial is what MockDialer returns when it has no connection to hand out.
var ErrDial = errors.New("dial refused")

// MockDialer hands out queued connections; with none queued it fails.
type MockDialer struct {
	Mu    sync.Mutex
	Conns []*MockConn
	Dials int
}

// Queue adds connections for upcoming dials.
func (d *MockDialer) Queue(conns ...*MockConn) {
	d.Mu.Lock()
	defer d.Mu.Unlock()
	d.Conns = append(d.Conns, conns...)
}

func (d *MockDialer) Dial(ctx context.Context) (stream.Conn, error) {
	d.Mu.Lock()
	defer d.Mu.Unlock()
	d.Dials++
	if len(d.Conns) == 0 {
		return nil, ErrDial
	}
	c := d.Conns[0]
	d.Conns = d.Conns[1:]
	return c, nil
}

func (d *MockDialer) DialCount() int {
	d.Mu.Lock()
	defer d.Mu.Unlock()
	return d.Dials
}

// FakeClock collects AfterFunc callbacks until the test fires them.
type FakeClock struct {
	Mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *FakeClock
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.Mu.Lock()
	defer t.clock.Mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) stream.Timer {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	t := &fakeTimer{clock: c, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Pending returns the delays of timers that are neither stopped nor fired.
func (c *FakeClock) Pending() []time.Duration {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	var out []time.Duration
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t.d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Scheduled returns the delays of every timer ever created, in order.
func (c *FakeClock) Scheduled() []time.Duration {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	out := make([]time.Duration, len(c.timers))
	for i, t := range c.timers {
		out[i] = t.d
	}
	return out
}

// Fire runs every pending callback and reports how many ran.
func (c *FakeClock) Fire() int {
	c.Mu.Lock()
	var due []func()
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t.f)
		}
	}
	c.Mu.Unlock()
	for _, f := range due {
		f()
	}
	return len(due)
}

// Eventually polls cond until it holds or the deadline passes.
func Eventually(cond func() bool, within time.Duration) bool {
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

// MockStreamer records what the dashboard asks of the streaming client.
type MockStreamer struct {
	Mu      sync.Mutex
	Inits   [][]string
	Updates [][]string
	Closed  int
	// IdleVal is what Idle reports. Initialize clears it.
	IdleVal bool
}

func (m *MockStreamer) Initialize(symbols []string) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Inits = append(m.Inits, append([]string(nil), symbols...))
	m.IdleVal = false
}

func (m *MockStreamer) Idle() bool {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.IdleVal
}

// SetIdle makes the streamer report that it gave up reconnecting.
func (m *MockStreamer) SetIdle() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.IdleVal = true
}

func (m *MockStreamer) UpdateSymbols(symbols []string) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Updates = append(m.Updates, append([]string(nil), symbols...))
}

func (m *MockStreamer) Close() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed++
}

func (m *MockStreamer) Counts() (inits, updates, closed int) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return len(m.Inits), len(m.Updates), m.Closed
}
