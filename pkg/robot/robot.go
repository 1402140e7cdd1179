package robot

import (
	"context"
	"fmt"
)

// Robot wraps a Link with the device's typed operations.
type Robot struct {
	link Link
}

// New returns a Robot driving link.
func New(link Link) *Robot {
	return &Robot{link: link}
}

// Close releases the underlying link.
func (r *Robot) Close() error {
	return r.link.Release()
}

// Ready reports whether the attribute table is available.
func (r *Robot) Ready() bool {
	return r.link.Ready()
}

// WakeCache reads the device info attribute so lazily-discovering platforms
// populate their attribute cache. The result is discarded.
func (r *Robot) WakeCache(ctx context.Context) error {
	_, err := r.link.Read(ctx, DeviceInfo)
	return err
}

// Activate writes an activation phase byte to the handshake attribute and
// waits for the write response.
func (r *Robot) Activate(ctx context.Context, phase byte) error {
	if err := r.link.Write(ctx, Handshake, []byte{phase}, true); err != nil {
		return fmt.Errorf("%w: phase 0x%02x: %v", ErrHandshakeWrite, phase, err)
	}
	return nil
}

// Subscribe registers a notification handler on attr. A nil fn discards
// notifications.
func (r *Robot) Subscribe(attr Attribute, fn func([]byte)) error {
	if fn == nil {
		fn = func([]byte) {}
	}
	if err := r.link.Subscribe(attr, fn); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSubscribe, attr, err)
	}
	return nil
}

// SendMotion writes m to the motion attribute without waiting for a response.
func (r *Robot) SendMotion(ctx context.Context, m MotionVector) error {
	if err := r.link.Write(ctx, Motion, m.Bytes(), false); err != nil {
		return fmt.Errorf("write motion: %w", err)
	}
	return nil
}

// SendHead writes h to the head attribute without waiting for a response.
func (r *Robot) SendHead(ctx context.Context, h HeadPosition) error {
	if err := r.link.Write(ctx, Head, h.Bytes(), false); err != nil {
		return fmt.Errorf("write head: %w", err)
	}
	return nil
}

// ReadBattery reads the battery level in percent.
func (r *Robot) ReadBattery(ctx context.Context) (int, error) {
	data, err := r.link.Read(ctx, Battery)
	if err != nil {
		return 0, fmt.Errorf("read battery: %w", err)
	}
	return DecodeBattery(data)
}
