//go:build darwin

package goble

import (
	"fmt"
	"strings"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
)

func openDevice(_ int) (ble.Device, error) {
	dev, err := darwin.NewDevice()
	if err != nil {
		// Wrap Bluetooth state errors with clearer messages
		if strings.Contains(err.Error(), "central manager has invalid state") {
			if strings.Contains(err.Error(), "have=4") { // StatePoweredOff
				return nil, fmt.Errorf("bluetooth is turned off - please enable Bluetooth and retry: %w", err)
			}
			return nil, fmt.Errorf("bluetooth is not ready: %w", err)
		}
		return nil, err
	}
	return dev, nil
}

// CoreBluetooth exposes a single central manager.
func hciDeviceIDs() ([]int, error) {
	return []int{0}, nil
}
