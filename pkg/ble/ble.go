// Package ble implements robot.Transport on tinygo.org/x/bluetooth.
package ble

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/gwillem/looidrive/pkg/robot"
)

// Transport discovers and connects LOOI devices through a host adapter.
type Transport struct {
	adapter   *bluetooth.Adapter
	endpoints robot.Endpoints
	log       *slog.Logger

	enableOnce sync.Once
	enableErr  error

	mu    sync.Mutex
	links map[string]*Link // by upper-case address
}

// NewTransport returns a transport on the default host adapter.
func NewTransport(endpoints robot.Endpoints, log *slog.Logger) *Transport {
	if log == nil {
		log = slog.Default()
	}
	return &Transport{
		adapter:   bluetooth.DefaultAdapter,
		endpoints: endpoints,
		log:       log.With("component", "ble"),
		links:     make(map[string]*Link),
	}
}

func (t *Transport) enable() error {
	t.enableOnce.Do(func() {
		t.enableErr = t.adapter.Enable()
		if t.enableErr == nil {
			t.adapter.SetConnectHandler(func(d bluetooth.Device, connected bool) {
				t.onConnect(d.Address.String(), connected)
			})
		}
	})
	return t.enableErr
}

// onConnect marks the link for addr lost when the host reports a disconnect.
func (t *Transport) onConnect(addr string, connected bool) {
	if connected {
		return
	}
	t.mu.Lock()
	l := t.links[strings.ToUpper(addr)]
	t.mu.Unlock()
	if l != nil && l.lost.CompareAndSwap(false, true) {
		l.log.Warn("connection lost")
	}
}

func (t *Transport) track(addr string, l *Link) {
	key := strings.ToUpper(addr)
	t.mu.Lock()
	t.links[key] = l
	t.mu.Unlock()
	l.forget = func() {
		t.mu.Lock()
		if t.links[key] == l {
			delete(t.links, key)
		}
		t.mu.Unlock()
	}
}

// Discover scans until a device whose advertised name satisfies match is
// seen or ctx ends.
func (t *Transport) Discover(ctx context.Context, match func(name string) bool) (robot.Device, error) {
	found, err := t.scan(ctx, match, true)
	if err != nil {
		return robot.Device{}, err
	}
	if len(found) == 0 {
		return robot.Device{}, robot.ErrDiscovery
	}
	return found[0], nil
}

// ScanAll collects every matching device seen until ctx ends.
func (t *Transport) ScanAll(ctx context.Context, match func(name string) bool) ([]robot.Device, error) {
	return t.scan(ctx, match, false)
}

func (t *Transport) scan(ctx context.Context, match func(name string) bool, first bool) ([]robot.Device, error) {
	if err := t.enable(); err != nil {
		return nil, fmt.Errorf("%w: enable adapter: %v", robot.ErrDiscovery, err)
	}

	var (
		mu    sync.Mutex
		found []robot.Device
		seen  = make(map[string]bool)
	)
	done := make(chan error, 1)

	go func() {
		done <- t.adapter.Scan(func(a *bluetooth.Adapter, res bluetooth.ScanResult) {
			name := res.LocalName()
			if name == "" || !match(name) {
				return
			}
			addr := res.Address.String()

			mu.Lock()
			defer mu.Unlock()
			if seen[addr] {
				return
			}
			seen[addr] = true
			found = append(found, robot.Device{Name: name, Address: addr, RSSI: res.RSSI})
			t.log.Debug("discovered", "name", name, "address", addr, "rssi", res.RSSI)
			if first {
				a.StopScan()
			}
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("%w: scan: %v", robot.ErrDiscovery, err)
		}
	case <-ctx.Done():
		// StopScan fails if the scan has not started yet, so retry
		// until Scan returns.
		tick := time.NewTicker(50 * time.Millisecond)
		defer tick.Stop()
		for stopped := false; !stopped; {
			t.adapter.StopScan()
			select {
			case <-done:
				stopped = true
			case <-tick.C:
			}
		}
	}

	mu.Lock()
	defer mu.Unlock()
	return found, nil
}

// Connect connects to dev and starts mapping its attributes in the
// background. Link.Ready reports when mapping has completed.
func (t *Transport) Connect(ctx context.Context, dev robot.Device, timeout time.Duration) (robot.Link, error) {
	if err := t.enable(); err != nil {
		return nil, fmt.Errorf("%w: enable adapter: %v", robot.ErrConnection, err)
	}

	addr, err := parseAddress(dev.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", robot.ErrConnection, err)
	}

	type result struct {
		device bluetooth.Device
		err    error
	}
	resultCh := make(chan result, 1)
	go func() {
		d, err := t.adapter.Connect(addr, bluetooth.ConnectionParams{
			ConnectionTimeout: bluetooth.NewDuration(timeout),
		})
		resultCh <- result{d, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var device bluetooth.Device
	select {
	case r := <-resultCh:
		if r.err != nil {
			return nil, fmt.Errorf("%w: %s: %v", robot.ErrConnection, dev.Address, r.err)
		}
		device = r.device
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s: timed out after %s", robot.ErrConnection, dev.Address, timeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", robot.ErrConnection, ctx.Err())
	}

	log := t.log.With("address", dev.Address)
	l := newLink(t.endpoints, log, discoverAll(device, log))
	l.requests = newRequestWriter(dev.Address)
	l.disconnect = device.Disconnect
	t.track(dev.Address, l)

	go l.mapAttributes()
	return l, nil
}

// gattChar is the part of bluetooth.DeviceCharacteristic a Link uses.
type gattChar interface {
	UUID() bluetooth.UUID
	Read(p []byte) (int, error)
	WriteWithoutResponse(p []byte) (int, error)
	EnableNotifications(fn func(buf []byte)) error
}

// requestWriter sends writes that wait for the device's write response.
type requestWriter interface {
	WriteRequest(ctx context.Context, uuid string, data []byte) error
}

// discoverAll walks every service of device and returns its characteristics.
func discoverAll(device bluetooth.Device, log *slog.Logger) func() ([]gattChar, error) {
	return func() ([]gattChar, error) {
		services, err := device.DiscoverServices(nil)
		if err != nil {
			return nil, err
		}
		var out []gattChar
		for _, service := range services {
			chars, err := service.DiscoverCharacteristics(nil)
			if err != nil {
				log.Warn("characteristic discovery failed", "service", service.UUID().String(), "err", err)
				continue
			}
			for _, c := range chars {
				out = append(out, c)
			}
		}
		log.Debug("services discovered", "services", len(services), "characteristics", len(out))
		return out, nil
	}
}

// Link is a connected device addressed by robot.Attribute.
type Link struct {
	endpoints  robot.Endpoints
	log        *slog.Logger
	discover   func() ([]gattChar, error)
	requests   requestWriter
	disconnect func() error
	forget     func()

	mu     sync.RWMutex
	chars  map[robot.Attribute]gattChar
	mapped chan struct{} // closed when mapping ends, successful or not

	ready    atomic.Bool
	released atomic.Bool
	lost     atomic.Bool
	// writeMu serialises writes; the host stack rejects overlapping
	// GATT operations on some platforms.
	writeMu sync.Mutex
}

func newLink(endpoints robot.Endpoints, log *slog.Logger, discover func() ([]gattChar, error)) *Link {
	return &Link{
		endpoints: endpoints,
		log:       log,
		discover:  discover,
		chars:     make(map[robot.Attribute]gattChar),
		mapped:    make(chan struct{}),
	}
}

func (l *Link) mapAttributes() {
	defer close(l.mapped)

	chars, err := l.discover()
	if err != nil {
		l.log.Warn("service discovery failed", "err", err)
		return
	}

	l.mu.Lock()
	for _, c := range chars {
		if attr, ok := l.endpoints.ByUUID(c.UUID().String()); ok {
			l.chars[attr] = c
		}
	}
	n := len(l.chars)
	l.mu.Unlock()

	l.log.Info("attributes mapped", "attributes", n)
	l.ready.Store(true)
}

// char returns the characteristic for attr. Until the attribute table is
// mapped it waits for mapping, so early reads reach the device instead of
// failing as unmapped.
func (l *Link) char(ctx context.Context, attr robot.Attribute) (gattChar, error) {
	if l.released.Load() {
		return nil, robot.ErrReleased
	}
	if l.lost.Load() {
		return nil, fmt.Errorf("%w: connection lost", robot.ErrReleased)
	}
	select {
	case <-l.mapped:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: waiting for attribute table: %v", robot.ErrTransientIO, attr, ctx.Err())
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.chars[attr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", robot.ErrNotMapped, attr)
	}
	return c, nil
}

// do runs fn on its own goroutine so a stalled host call cannot outlive ctx.
func do(ctx context.Context, fn func() error) error {
	errCh := make(chan error, 1)
	go func() { errCh <- fn() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Read returns the current value of attr.
func (l *Link) Read(ctx context.Context, attr robot.Attribute) ([]byte, error) {
	c, err := l.char(ctx, attr)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = do(ctx, func() error {
		buf := make([]byte, 512)
		n, err := c.Read(buf)
		if err != nil {
			return err
		}
		data = buf[:n]
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", robot.ErrTransientIO, attr, err)
	}
	return data, nil
}

// Write sends data to attr, waiting for the write response when ack is set.
func (l *Link) Write(ctx context.Context, attr robot.Attribute, data []byte, ack bool) error {
	c, err := l.char(ctx, attr)
	if err != nil {
		return err
	}
	err = do(ctx, func() error {
		l.writeMu.Lock()
		defer l.writeMu.Unlock()
		if ack {
			return l.writeRequest(ctx, attr, c, data)
		}
		_, err := c.WriteWithoutResponse(data)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: write %s: %v", robot.ErrTransientIO, attr, err)
	}
	return nil
}

// Subscribe enables notifications on attr.
func (l *Link) Subscribe(attr robot.Attribute, fn func([]byte)) error {
	c, err := l.char(context.Background(), attr)
	if err != nil {
		return err
	}
	return c.EnableNotifications(fn)
}

// Ready reports whether attribute mapping has completed.
func (l *Link) Ready() bool {
	return l.ready.Load()
}

// Release disconnects the device. Later calls are no-ops.
func (l *Link) Release() error {
	if !l.released.CompareAndSwap(false, true) {
		return nil
	}
	if l.forget != nil {
		l.forget()
	}
	if l.disconnect == nil {
		return nil
	}
	if err := l.disconnect(); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	l.log.Info("disconnected")
	return nil
}

var (
	_ robot.Transport = (*Transport)(nil)
	_ robot.Link      = (*Link)(nil)
	_ gattChar        = bluetooth.DeviceCharacteristic{}
)
