package robot

import (
	"fmt"
)

// Motion limits. The drivetrain treats ±127 as full power.
const (
	MaxSpeed = 127
	MinSpeed = -127
)

// MotionVector is the {speed, turn} pair commanded to the drivetrain.
type MotionVector struct {
	Speed int8
	Turn  int8
}

// Presets. Exactly one is active while the robot is moving.
var (
	Neutral   = MotionVector{}
	Forward   = MotionVector{Speed: MaxSpeed}
	Backward  = MotionVector{Speed: MinSpeed}
	LeftSpin  = MotionVector{Turn: MaxSpeed}
	RightSpin = MotionVector{Turn: MinSpeed}
)

// IsNeutral reports whether m commands no motion.
func (m MotionVector) IsNeutral() bool {
	return m == Neutral
}

// Bytes encodes m as the 2-byte motion payload (two's complement).
func (m MotionVector) Bytes() []byte {
	return []byte{byte(m.Speed), byte(m.Turn)}
}

// Glyph returns the status glyph for m.
func (m MotionVector) Glyph() string {
	switch m {
	case Forward:
		return "▲▲▲"
	case Backward:
		return "▼▼▼"
	case LeftSpin:
		return "◄◄◄"
	case RightSpin:
		return "►►►"
	case Neutral:
		return "🛑"
	}
	return fmt.Sprintf("%d/%d", m.Speed, m.Turn)
}

func (m MotionVector) String() string {
	return fmt.Sprintf("{%d,%d}", m.Speed, m.Turn)
}

// HeadPosition is the head angle. 0x5A is the 90° center.
type HeadPosition uint8

const (
	HeadCenter HeadPosition = 0x5A
	HeadStep                = 10
)

// Step returns the head position moved by delta, clamped to [0, 255].
func (h HeadPosition) Step(delta int) HeadPosition {
	return HeadPosition(Clamp(int(h)+delta, 0, 255))
}

// Bytes encodes h as the 1-byte head payload.
func (h HeadPosition) Bytes() []byte {
	return []byte{byte(h)}
}

// Clamp restricts v to the range [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Activation phases written to the handshake attribute.
const (
	ActivationWake  byte = 0x01
	ActivationDrive byte = 0x03
)

// DecodeBattery returns the battery level in percent from the first byte of
// the battery attribute.
func DecodeBattery(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, fmt.Errorf("battery payload empty")
	}
	return Clamp(int(b[0]), 0, 100), nil
}
