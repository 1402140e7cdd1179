package robot

import (
	"fmt"
	"strings"

	"tinygo.org/x/bluetooth"
)

// Endpoints maps each attribute to its characteristic UUID.
type Endpoints map[Attribute]string

// DefaultEndpoints returns the endpoint map of the stock LOOI firmware.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Motion:     "0000fed0-0000-1000-8000-00805f9b34fb",
		Head:       "0000fed1-0000-1000-8000-00805f9b34fb",
		Sensors:    "0000fed5-0000-1000-8000-00805f9b34fb",
		Battery:    "0000fed8-0000-1000-8000-00805f9b34fb",
		Stream:     "0000fed9-0000-1000-8000-00805f9b34fb",
		Handshake:  "0000feda-0000-1000-8000-00805f9b34fb",
		DeviceInfo: "00002a29-0000-1000-8000-00805f9b34fb", // manufacturer name string
	}
}

// UUID returns the parsed UUID for an attribute.
func (e Endpoints) UUID(attr Attribute) (bluetooth.UUID, error) {
	s, ok := e[attr]
	if !ok {
		return bluetooth.UUID{}, fmt.Errorf("%w: %s", ErrNotMapped, attr)
	}
	uuid, err := bluetooth.ParseUUID(s)
	if err != nil {
		return bluetooth.UUID{}, fmt.Errorf("parse %s uuid %q: %w", attr, s, err)
	}
	return uuid, nil
}

// ByUUID returns the attribute mapped to uuid, compared case-insensitively.
func (e Endpoints) ByUUID(uuid string) (Attribute, bool) {
	for attr, s := range e {
		if strings.EqualFold(s, uuid) {
			return attr, true
		}
	}
	return "", false
}

// Validate checks that every attribute is mapped to a distinct, parsable UUID.
func (e Endpoints) Validate() error {
	seen := make(map[string]Attribute, len(e))
	for _, attr := range AllAttributes() {
		if _, err := e.UUID(attr); err != nil {
			return err
		}
		key := strings.ToLower(e[attr])
		if other, dup := seen[key]; dup {
			return fmt.Errorf("endpoints %s and %s share uuid %s", other, attr, e[attr])
		}
		seen[key] = attr
	}
	return nil
}

// Merge returns a copy of e with the non-empty entries of override applied.
func (e Endpoints) Merge(override Endpoints) Endpoints {
	out := make(Endpoints, len(e))
	for attr, s := range e {
		out[attr] = s
	}
	for attr, s := range override {
		if s != "" {
			out[attr] = s
		}
	}
	return out
}
