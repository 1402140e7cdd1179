package ble

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/gwillem/looidrive/pkg/robot"
)

// fakeChar records calls made on one characteristic.
type fakeChar struct {
	uuid bluetooth.UUID
	data []byte

	mu     sync.Mutex
	reads  int
	writes [][]byte
}

func newFakeChar(t *testing.T, attr robot.Attribute, data []byte) *fakeChar {
	t.Helper()
	uuid, err := robot.DefaultEndpoints().UUID(attr)
	if err != nil {
		t.Fatal(err)
	}
	return &fakeChar{uuid: uuid, data: data}
}

func (c *fakeChar) UUID() bluetooth.UUID { return c.uuid }

func (c *fakeChar) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	return copy(p, c.data), nil
}

func (c *fakeChar) WriteWithoutResponse(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (c *fakeChar) EnableNotifications(fn func(buf []byte)) error { return nil }

func (c *fakeChar) readCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

func (c *fakeChar) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

var quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))

// testLink returns a Link whose discovery yields chars after delay.
func testLink(delay time.Duration, err error, chars ...gattChar) *Link {
	return newLink(robot.DefaultEndpoints(), quietLog, func() ([]gattChar, error) {
		time.Sleep(delay)
		return chars, err
	})
}

func TestLink_EarlyReadWaitsForMapping(t *testing.T) {
	info := newFakeChar(t, robot.DeviceInfo, []byte("LOOI"))
	l := testLink(20*time.Millisecond, nil, info)
	go l.mapAttributes()

	// Issued right after connect, before the attribute table exists.
	if l.Ready() {
		t.Fatal("ready before mapping")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := robot.New(l).WakeCache(ctx); err != nil {
		t.Fatalf("WakeCache: %v", err)
	}
	if got := info.readCount(); got != 1 {
		t.Errorf("device info reads = %d, want 1", got)
	}
	if !l.Ready() {
		t.Error("not ready after mapping")
	}
}

func TestLink_ReadTimesOutWhileMapping(t *testing.T) {
	l := testLink(time.Second, nil)
	go l.mapAttributes()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := l.Read(ctx, robot.DeviceInfo)
	if !errors.Is(err, robot.ErrTransientIO) {
		t.Errorf("err = %v, want ErrTransientIO", err)
	}
}

func TestLink_FailedMappingIsNotReady(t *testing.T) {
	l := testLink(0, errors.New("services not resolved"))
	l.mapAttributes()

	if l.Ready() {
		t.Error("ready after failed discovery")
	}
	_, err := l.Read(context.Background(), robot.Battery)
	if !errors.Is(err, robot.ErrNotMapped) {
		t.Errorf("err = %v, want ErrNotMapped", err)
	}
}

func TestLink_MissingAttributeIsNotMapped(t *testing.T) {
	l := testLink(0, nil, newFakeChar(t, robot.Battery, []byte{50}))
	l.mapAttributes()

	if !l.Ready() {
		t.Fatal("not ready")
	}
	err := l.Write(context.Background(), robot.Motion, robot.Neutral.Bytes(), false)
	if !errors.Is(err, robot.ErrNotMapped) {
		t.Errorf("err = %v, want ErrNotMapped", err)
	}
}

func TestLink_WriteWithoutResponse(t *testing.T) {
	motion := newFakeChar(t, robot.Motion, nil)
	l := testLink(0, nil, motion)
	l.mapAttributes()

	if err := l.Write(context.Background(), robot.Motion, robot.Forward.Bytes(), false); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := motion.writeCount(); got != 1 {
		t.Errorf("writes = %d, want 1", got)
	}
}

func TestTransport_DisconnectMarksLinkLost(t *testing.T) {
	tr := NewTransport(robot.DefaultEndpoints(), quietLog)
	motion := newFakeChar(t, robot.Motion, nil)
	l := testLink(0, nil, motion)
	l.mapAttributes()
	tr.track("aa:bb:cc:dd:ee:ff", l)

	tr.onConnect("AA:BB:CC:DD:EE:FF", true)
	if err := l.Write(context.Background(), robot.Motion, robot.Forward.Bytes(), false); err != nil {
		t.Fatalf("Write while connected: %v", err)
	}

	tr.onConnect("AA:BB:CC:DD:EE:FF", false)
	err := l.Write(context.Background(), robot.Motion, robot.Forward.Bytes(), false)
	if !errors.Is(err, robot.ErrReleased) {
		t.Errorf("err = %v, want ErrReleased", err)
	}
	if got := motion.writeCount(); got != 1 {
		t.Errorf("writes reached a lost link: %d", got)
	}
}

func TestLink_ReleaseIsIdempotent(t *testing.T) {
	tr := NewTransport(robot.DefaultEndpoints(), quietLog)
	l := testLink(0, nil)
	calls := 0
	l.disconnect = func() error { calls++; return nil }
	tr.track("AA:BB:CC:DD:EE:FF", l)

	for i := 0; i < 2; i++ {
		if err := l.Release(); err != nil {
			t.Fatalf("Release: %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("disconnect calls = %d, want 1", calls)
	}
	if len(tr.links) != 0 {
		t.Error("released link still tracked")
	}
	if _, err := l.Read(context.Background(), robot.Battery); !errors.Is(err, robot.ErrReleased) {
		t.Errorf("read after release: %v", err)
	}
}
