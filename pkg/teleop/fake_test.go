package teleop

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gwillem/looidrive/pkg/robot"
)

// write records a single attribute write.
type write struct {
	attr robot.Attribute
	data []byte
	ack  bool
	at   time.Time
}

// mockLink records all calls for testing.
type mockLink struct {
	mu         sync.Mutex
	ready      bool
	readyAfter int // Ready() returns true from this probe on; 0 means never unless ready is set
	probes     int
	writes     []write
	reads      []robot.Attribute
	batteryAt  []time.Time
	subscribed []robot.Attribute
	released   int

	battery    []byte
	writeErr   map[robot.Attribute]error
	readErr    map[robot.Attribute]error
	subErr     map[robot.Attribute]error
	failWrites int // motion writes that fail before succeeding
}

func newMockLink() *mockLink {
	return &mockLink{
		ready:    true,
		battery:  []byte{77},
		writeErr: make(map[robot.Attribute]error),
		readErr:  make(map[robot.Attribute]error),
		subErr:   make(map[robot.Attribute]error),
	}
}

func (m *mockLink) Read(ctx context.Context, attr robot.Attribute) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads = append(m.reads, attr)
	if attr == robot.Battery {
		m.batteryAt = append(m.batteryAt, time.Now())
	}
	if err := m.readErr[attr]; err != nil {
		return nil, err
	}
	if attr == robot.Battery {
		return m.battery, nil
	}
	return []byte("LOOI"), nil
}

func (m *mockLink) Write(ctx context.Context, attr robot.Attribute, data []byte, ack bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, write{attr, append([]byte(nil), data...), ack, time.Now()})
	if attr == robot.Motion && m.failWrites > 0 {
		m.failWrites--
		return robot.ErrTransientIO
	}
	return m.writeErr[attr]
}

func (m *mockLink) Subscribe(attr robot.Attribute, fn func([]byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribed = append(m.subscribed, attr)
	return m.subErr[attr]
}

func (m *mockLink) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes++
	if m.readyAfter > 0 && m.probes >= m.readyAfter {
		return true
	}
	return m.ready
}

func (m *mockLink) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released++
	return nil
}

func (m *mockLink) writesTo(attr robot.Attribute) []write {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []write
	for _, w := range m.writes {
		if w.attr == attr {
			out = append(out, w)
		}
	}
	return out
}

func (m *mockLink) allWrites() []write {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]write(nil), m.writes...)
}

func (m *mockLink) batteryReads() []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Time(nil), m.batteryAt...)
}

func (m *mockLink) probeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.probes
}

func (m *mockLink) releaseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released
}

// mockTransport hands out a single mockLink.
type mockTransport struct {
	link        *mockLink
	discoverErr error
	connectErr  error
	discovered  int
	connected   int
}

func (t *mockTransport) Discover(ctx context.Context, match func(string) bool) (robot.Device, error) {
	t.discovered++
	if t.discoverErr != nil {
		return robot.Device{}, t.discoverErr
	}
	if !match("LOOI-1234") {
		return robot.Device{}, robot.ErrDiscovery
	}
	return robot.Device{Name: "LOOI-1234", Address: "AA:BB:CC:DD:EE:FF"}, nil
}

func (t *mockTransport) Connect(ctx context.Context, dev robot.Device, timeout time.Duration) (robot.Link, error) {
	t.connected++
	if t.connectErr != nil {
		return nil, t.connectErr
	}
	return t.link, nil
}

// scriptedKeys replays keys, one per poll, then reports nothing.
type scriptedKeys struct {
	mu   sync.Mutex
	keys []rune
}

func (s *scriptedKeys) Poll() (rune, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.keys) == 0 {
		return 0, false
	}
	k := s.keys[0]
	s.keys = s.keys[1:]
	return k, true
}

func fastTiming() robot.Timing {
	return robot.Timing{
		CommandInterval:   2 * time.Millisecond,
		CommandRetry:      5 * time.Millisecond,
		TelemetryInterval: 5 * time.Millisecond,
		TelemetryRetry:    3 * time.Millisecond,
		PollInterval:      time.Millisecond,
		IdleTimeout:       100 * time.Millisecond,
		ReadyAttempts:     10,
		ReadyInterval:     time.Millisecond,
		SettleDelay:       time.Millisecond,
	}
}

func newTestController(link *mockLink) (*Controller, *mockTransport) {
	tr := &mockTransport{link: link}
	cfg := robot.DefaultConfig()
	cfg.Timing = fastTiming()
	ctrl, err := NewController(Config{Transport: tr, Robot: cfg})
	if err != nil {
		panic(err)
	}
	return ctrl, tr
}

var errBoom = errors.New("boom")
