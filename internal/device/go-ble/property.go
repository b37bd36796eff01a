package goble

import (
	"github.com/go-ble/ble"
	"github.com/srg/blepoll/internal/device"
)

var propertyMap = []struct {
	ble  ble.Property
	prop device.Property
}{
	{ble.CharBroadcast, device.PropBroadcast},
	{ble.CharRead, device.PropRead},
	{ble.CharWriteNR, device.PropWriteWithoutResponse},
	{ble.CharWrite, device.PropWrite},
	{ble.CharNotify, device.PropNotify},
	{ble.CharIndicate, device.PropIndicate},
}

// NewProperties converts ble.Property bit flags into a device.Property.
func NewProperties(p ble.Property) device.Property {
	var result device.Property
	for _, m := range propertyMap {
		if p&m.ble != 0 {
			result |= m.prop
		}
	}
	return result
}
