//go:build !darwin

package ble

import (
	"errors"
	"fmt"

	"tinygo.org/x/bluetooth"
)

func parseAddress(s string) (bluetooth.Address, error) {
	if s == "" {
		return bluetooth.Address{}, errors.New("empty device address")
	}
	mac, err := bluetooth.ParseMAC(s)
	if err != nil {
		return bluetooth.Address{}, fmt.Errorf("parse address %q: %w", s, err)
	}
	return bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}, nil
}
