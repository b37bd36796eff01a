package device

import "strings"

// Property is the GATT characteristic property bitmask.
type Property uint8

const (
	PropBroadcast Property = 1 << iota
	PropRead
	PropWriteWithoutResponse
	PropWrite
	PropNotify
	PropIndicate
)

var propertyNames = []struct {
	prop Property
	name string
}{
	{PropBroadcast, "broadcast"},
	{PropRead, "read"},
	{PropWriteWithoutResponse, "write-without-response"},
	{PropWrite, "write"},
	{PropNotify, "notify"},
	{PropIndicate, "indicate"},
}

// ParseProperties converts BlueZ-style flag names ("read", "notify", ...) into a Property.
// Unknown names are ignored.
func ParseProperties(flags ...string) Property {
	var p Property
	for _, f := range flags {
		for _, pn := range propertyNames {
			if strings.EqualFold(strings.TrimSpace(f), pn.name) {
				p |= pn.prop
			}
		}
	}
	return p
}

// Has reports whether all bits of other are set.
func (p Property) Has(other Property) bool {
	return p&other == other
}

func (p Property) String() string {
	if p == 0 {
		return "none"
	}
	names := make([]string, 0, len(propertyNames))
	for _, pn := range propertyNames {
		if p.Has(pn.prop) {
			names = append(names, pn.name)
		}
	}
	return strings.Join(names, ",")
}
