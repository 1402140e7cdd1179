//go:build !linux

package ble

import (
	"context"
	"fmt"

	"github.com/gwillem/looidrive/pkg/robot"
)

// responseWriter is implemented by DeviceCharacteristic on host stacks that
// support write-with-response directly.
type responseWriter interface {
	Write(p []byte) (int, error)
}

func newRequestWriter(string) requestWriter { return nil }

func (l *Link) writeRequest(_ context.Context, attr robot.Attribute, c gattChar, data []byte) error {
	w, ok := c.(responseWriter)
	if !ok {
		return fmt.Errorf("%s: write with response not supported", attr)
	}
	_, err := w.Write(data)
	return err
}
