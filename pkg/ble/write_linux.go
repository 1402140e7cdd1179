package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/gwillem/looidrive/pkg/robot"
)

// BlueZ exposes write-with-response only through its D-Bus API; the
// bluetooth package offers WriteWithoutResponse alone on Linux.
const (
	bluezService       = "org.bluez"
	bluezAdapterPath   = "/org/bluez/hci0"
	gattCharacteristic = "org.bluez.GattCharacteristic1"
	gattWriteValue     = gattCharacteristic + ".WriteValue"
	getManagedObjects  = "org.freedesktop.DBus.ObjectManager.GetManagedObjects"
)

type managedObjects = map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// bluezBus is satisfied by *dbus.Conn.
type bluezBus interface {
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
}

// bluezWriter writes characteristics of one device through BlueZ.
type bluezWriter struct {
	device dbus.ObjectPath

	mu    sync.Mutex
	bus   bluezBus
	paths map[string]dbus.ObjectPath // by lower-case UUID
}

func newRequestWriter(address string) requestWriter {
	return &bluezWriter{
		device: devicePath(address),
		paths:  make(map[string]dbus.ObjectPath),
	}
}

func (l *Link) writeRequest(ctx context.Context, attr robot.Attribute, _ gattChar, data []byte) error {
	return l.requests.WriteRequest(ctx, l.endpoints[attr], data)
}

// devicePath returns the BlueZ object path of a device on the default adapter.
func devicePath(address string) dbus.ObjectPath {
	return dbus.ObjectPath(bluezAdapterPath + "/dev_" + strings.ReplaceAll(strings.ToUpper(address), ":", "_"))
}

// writeOptions returns the WriteValue options selecting the write type.
func writeOptions(ack bool) map[string]interface{} {
	if ack {
		return map[string]interface{}{"type": "request"}
	}
	return map[string]interface{}{"type": "command"}
}

// WriteRequest writes data to the characteristic with uuid and waits for
// the device's response.
func (w *bluezWriter) WriteRequest(ctx context.Context, uuid string, data []byte) error {
	path, bus, err := w.charPath(ctx, uuid)
	if err != nil {
		return err
	}
	return bus.Object(bluezService, path).CallWithContext(ctx, gattWriteValue, 0, data, writeOptions(true)).Err
}

func (w *bluezWriter) charPath(ctx context.Context, uuid string) (dbus.ObjectPath, bluezBus, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.bus == nil {
		conn, err := dbus.SystemBus()
		if err != nil {
			return "", nil, fmt.Errorf("system bus: %w", err)
		}
		w.bus = conn
	}

	key := strings.ToLower(uuid)
	if p, ok := w.paths[key]; ok {
		return p, w.bus, nil
	}

	objects := make(managedObjects)
	if err := w.bus.Object(bluezService, "/").CallWithContext(ctx, getManagedObjects, 0).Store(&objects); err != nil {
		return "", nil, fmt.Errorf("get managed objects: %w", err)
	}
	p, ok := findCharPath(objects, w.device, uuid)
	if !ok {
		return "", nil, fmt.Errorf("%w: no characteristic %s under %s", robot.ErrNotMapped, uuid, w.device)
	}
	w.paths[key] = p
	return p, w.bus, nil
}

// findCharPath locates the characteristic with uuid below device.
func findCharPath(objects managedObjects, device dbus.ObjectPath, uuid string) (dbus.ObjectPath, bool) {
	prefix := string(device) + "/"
	for path, ifaces := range objects {
		if !strings.HasPrefix(string(path), prefix) {
			continue
		}
		props, ok := ifaces[gattCharacteristic]
		if !ok {
			continue
		}
		v, ok := props["UUID"]
		if !ok {
			continue
		}
		if s, ok := v.Value().(string); ok && strings.EqualFold(s, uuid) {
			return path, true
		}
	}
	return "", false
}
