package ble

import (
	"errors"
	"fmt"

	"tinygo.org/x/bluetooth"
)

// CoreBluetooth identifies peripherals by UUID rather than MAC.
func parseAddress(s string) (bluetooth.Address, error) {
	if s == "" {
		return bluetooth.Address{}, errors.New("empty device address")
	}
	uuid, err := bluetooth.ParseUUID(s)
	if err != nil {
		return bluetooth.Address{}, fmt.Errorf("parse address %q: %w", s, err)
	}
	return bluetooth.Address{UUID: uuid}, nil
}
