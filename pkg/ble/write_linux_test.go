package ble

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/godbus/dbus/v5"

	"github.com/gwillem/looidrive/pkg/robot"
)

// recordingWriter records write requests.
type recordingWriter struct {
	mu    sync.Mutex
	uuids []string
	data  [][]byte
}

func (w *recordingWriter) WriteRequest(ctx context.Context, uuid string, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.uuids = append(w.uuids, uuid)
	w.data = append(w.data, append([]byte(nil), data...))
	return nil
}

// recordingObject records D-Bus method calls.
type recordingObject struct {
	dbus.BusObject
	path   dbus.ObjectPath
	method string
	args   []interface{}
}

func (o *recordingObject) CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call {
	o.method = method
	o.args = args
	return &dbus.Call{}
}

type recordingBus struct {
	objects map[dbus.ObjectPath]*recordingObject
}

func (b *recordingBus) Object(dest string, path dbus.ObjectPath) dbus.BusObject {
	o := &recordingObject{path: path}
	b.objects[path] = o
	return o
}

func TestLinkWrite_AckUsesWriteRequest(t *testing.T) {
	handshake := newFakeChar(t, robot.Handshake, nil)
	l := testLink(0, nil, handshake)
	requests := &recordingWriter{}
	l.requests = requests
	l.mapAttributes()

	if err := l.Write(context.Background(), robot.Handshake, []byte{robot.ActivationWake}, true); err != nil {
		t.Fatalf("Write ack: %v", err)
	}
	if len(requests.uuids) != 1 || requests.uuids[0] != robot.DefaultEndpoints()[robot.Handshake] {
		t.Fatalf("write requests = %v", requests.uuids)
	}
	if !bytes.Equal(requests.data[0], []byte{0x01}) {
		t.Errorf("request data = %x", requests.data[0])
	}
	if handshake.writeCount() != 0 {
		t.Error("ack write went out as write-without-response")
	}

	if err := l.Write(context.Background(), robot.Handshake, []byte{robot.ActivationDrive}, false); err != nil {
		t.Fatalf("Write no ack: %v", err)
	}
	if len(requests.uuids) != 1 || handshake.writeCount() != 1 {
		t.Error("unacknowledged write used a write request")
	}
}

func TestWriteOptions(t *testing.T) {
	if got := writeOptions(true)["type"]; got != "request" {
		t.Errorf("ack type = %v, want request", got)
	}
	if got := writeOptions(false)["type"]; got != "command" {
		t.Errorf("no-ack type = %v, want command", got)
	}
}

func TestBluezWriter_WriteRequest(t *testing.T) {
	uuid := robot.DefaultEndpoints()[robot.Handshake]
	charPath := dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF/service0010/char0015")
	bus := &recordingBus{objects: make(map[dbus.ObjectPath]*recordingObject)}
	w := newRequestWriter("aa:bb:cc:dd:ee:ff").(*bluezWriter)
	w.bus = bus
	w.paths[uuid] = charPath

	if err := w.WriteRequest(context.Background(), uuid, []byte{0x03}); err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}
	o := bus.objects[charPath]
	if o == nil {
		t.Fatal("characteristic object not called")
	}
	if o.method != "org.bluez.GattCharacteristic1.WriteValue" {
		t.Errorf("method = %s", o.method)
	}
	if len(o.args) != 2 || !bytes.Equal(o.args[0].([]byte), []byte{0x03}) {
		t.Fatalf("args = %v", o.args)
	}
	opts, ok := o.args[1].(map[string]interface{})
	if !ok || opts["type"] != "request" {
		t.Errorf("options = %v, want type=request", o.args[1])
	}
}

func TestFindCharPath(t *testing.T) {
	uuid := robot.DefaultEndpoints()[robot.Handshake]
	char := func(u string) map[string]map[string]dbus.Variant {
		return map[string]map[string]dbus.Variant{
			"org.bluez.GattCharacteristic1": {"UUID": dbus.MakeVariant(u)},
		}
	}
	objects := managedObjects{
		"/org/bluez/hci0/dev_11_22_33_44_55_66/service0010/char0015": char(uuid),
		"/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF/service0010/char0011": char(robot.DefaultEndpoints()[robot.Motion]),
		"/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF/service0010/char0015": char(uuid),
	}

	got, ok := findCharPath(objects, devicePath("aa:bb:cc:dd:ee:ff"), uuid)
	if !ok || got != "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF/service0010/char0015" {
		t.Errorf("findCharPath = %q, %v", got, ok)
	}
	if _, ok := findCharPath(objects, devicePath("aa:bb:cc:dd:ee:ff"), robot.DefaultEndpoints()[robot.Battery]); ok {
		t.Error("found a characteristic that does not exist")
	}
}
