//go:build !linux && !darwin

package goble

import (
	"fmt"
	"runtime"

	"github.com/go-ble/ble"
	"github.com/srg/blepoll/internal/device"
)

func openDevice(_ int) (ble.Device, error) {
	return nil, fmt.Errorf("go-ble on %s: %w", runtime.GOOS, device.ErrUnsupported)
}

func hciDeviceIDs() ([]int, error) {
	return nil, nil
}
