package robot

import (
	"context"
	"strings"
	"time"
)

// Device is a discovered peripheral.
type Device struct {
	Name    string
	Address string
	RSSI    int16
}

// NameContains returns a case-insensitive name substring predicate.
func NameContains(substr string) func(name string) bool {
	substr = strings.ToLower(substr)
	return func(name string) bool {
		return strings.Contains(strings.ToLower(name), substr)
	}
}

// Link is an established connection to a device, addressed by attribute.
type Link interface {
	// Read returns the current value of attr.
	Read(ctx context.Context, attr Attribute) ([]byte, error)
	// Write sends data to attr. With ack set the call waits for the
	// device's write response.
	Write(ctx context.Context, attr Attribute, data []byte, ack bool) error
	// Subscribe registers fn for notifications on attr.
	Subscribe(attr Attribute, fn func([]byte)) error
	// Ready reports whether the attribute table is mapped. It never blocks.
	Ready() bool
	// Release disconnects. Safe to call more than once.
	Release() error
}

// Transport discovers and connects devices.
type Transport interface {
	Discover(ctx context.Context, match func(name string) bool) (Device, error)
	Connect(ctx context.Context, dev Device, timeout time.Duration) (Link, error)
}
