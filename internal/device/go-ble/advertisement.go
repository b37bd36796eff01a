package goble

import (
	"github.com/go-ble/ble"
)

// advertisement is the part of a ble.Advertisement a peripheral keeps.
// ble.Advertisement values are only valid inside the scan handler, so the
// fields are copied out immediately. The ble.Addr itself is kept because its
// concrete type carries the address type the HCI dialer needs.
type advertisement struct {
	addr ble.Addr
	name string
	rssi int
}

func newAdvertisement(adv ble.Advertisement) advertisement {
	return advertisement{
		addr: adv.Addr(),
		name: adv.LocalName(),
		rssi: adv.RSSI(),
	}
}

// key is the registry key for the advertising peripheral.
func (a advertisement) key() string {
	return a.addr.String()
}
