// Package looidrive provides keyboard teleoperation for LOOI robots over
// Bluetooth LE.
//
// The robot is driven by a steady 30 ms stream of motion commands. Keys
// select a motion preset which is held until the key stops repeating, at
// which point the robot stops on its own. Battery level is read every few
// seconds and charted in the terminal.
//
// # Installation
//
//	go install github.com/gwillem/looidrive/cmd/looi@latest
//
// # Usage
//
// First, scan for robots and save the one you want to drive:
//
//	looi scan
//
// Then start driving:
//
//	looi drive
//
// Settings live in looi.yaml and can be overridden with LOOI_* environment
// variables or command line flags.
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/looi: CLI with scan and drive commands
//   - pkg/robot: Attributes, motion encoding, keymap, and configuration
//   - pkg/ble: Bluetooth LE transport
//   - pkg/teleop: Session controller with handshake, loops, and teardown
//   - internal/logging: Structured log setup
package looidrive
