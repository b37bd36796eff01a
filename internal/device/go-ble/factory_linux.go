//go:build linux

package goble

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

const sysfsBluetooth = "/sys/class/bluetooth"

func openDevice(id int) (ble.Device, error) {
	dev, err := linux.NewDevice(ble.OptDeviceID(id))
	if err != nil {
		return nil, err
	}
	return dev, nil
}

// hciDeviceIDs reads the hciN entries the kernel exposes in sysfs.
func hciDeviceIDs() ([]int, error) {
	entries, err := os.ReadDir(sysfsBluetooth)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var ids []int
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "hci") || strings.Contains(name, ":") {
			continue
		}
		var id int
		if _, err := fmt.Sscanf(name, "hci%d", &id); err == nil {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}
