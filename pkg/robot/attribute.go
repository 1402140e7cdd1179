// Package robot provides the device model for a LOOI robot: its attribute
// endpoints, motion and head commands, and typed operations over a transport
// link.
package robot

// Attribute identifies a device endpoint by role.
type Attribute string

// Endpoints exposed by the LOOI firmware.
const (
	Motion     Attribute = "motion"      // [speed, turn], write
	Head       Attribute = "head"        // [angle], write
	Sensors    Attribute = "sensors"     // notify
	Battery    Attribute = "battery"     // read
	Stream     Attribute = "stream"      // telemetry notify
	Handshake  Attribute = "handshake"   // activation, write with response
	DeviceInfo Attribute = "device_info" // read only, used to wake the attribute cache
)

// AllAttributes returns every attribute in a stable order.
func AllAttributes() []Attribute {
	return []Attribute{
		Motion,
		Head,
		Sensors,
		Battery,
		Stream,
		Handshake,
		DeviceInfo,
	}
}

// KeepaliveAttributes returns the notify attributes that must be subscribed
// for the firmware to keep the link up.
func KeepaliveAttributes() []Attribute {
	return []Attribute{Sensors, Stream}
}
