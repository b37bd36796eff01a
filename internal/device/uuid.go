package device

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	uuid "github.com/satori/go.uuid"
)

// UUID is a 128-bit GATT attribute identifier. Values compare with ==.
type UUID uuid.UUID

// BaseUUID is the Bluetooth SIG base UUID that 16- and 32-bit aliases expand into.
var BaseUUID = UUID(uuid.FromStringOrNil("00000000-0000-1000-8000-00805f9b34fb"))

// UUID16 expands a 16-bit SIG alias (e.g. 0x2A5F) into a full UUID.
func UUID16(v uint16) UUID {
	return UUID32(uint32(v))
}

// UUID32 expands a 32-bit SIG alias into a full UUID.
func UUID32(v uint32) UUID {
	u := BaseUUID
	binary.BigEndian.PutUint32(u[0:4], v)
	return u
}

// ParseUUID accepts 16-bit ("2a5f", "0x2A5F"), 32-bit, and 128-bit forms,
// with or without dashes.
func ParseUUID(s string) (UUID, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	raw = strings.TrimPrefix(raw, "0x")

	switch len(raw) {
	case 4, 8:
		v, err := strconv.ParseUint(raw, 16, 32)
		if err != nil {
			return UUID{}, fmt.Errorf("invalid UUID %q: %w", s, err)
		}
		return UUID32(uint32(v)), nil
	case 32, 36:
		if len(raw) == 32 {
			raw = raw[0:8] + "-" + raw[8:12] + "-" + raw[12:16] + "-" + raw[16:20] + "-" + raw[20:]
		}
		u, err := uuid.FromString(raw)
		if err != nil {
			return UUID{}, fmt.Errorf("invalid UUID %q: %w", s, err)
		}
		return UUID(u), nil
	default:
		return UUID{}, fmt.Errorf("invalid UUID %q: unexpected length %d", s, len(raw))
	}
}

// MustParseUUID is like ParseUUID but panics on malformed input.
func MustParseUUID(s string) UUID {
	u, err := ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return u
}

// String returns the canonical dashed form.
func (u UUID) String() string {
	return uuid.UUID(u).String()
}

// Short returns the 16-bit alias ("2a5f") for SIG-base UUIDs and the canonical form otherwise.
func (u UUID) Short() string {
	if u[0] == 0 && u[1] == 0 && [12]byte(u[4:]) == [12]byte(BaseUUID[4:]) {
		return fmt.Sprintf("%04x", binary.BigEndian.Uint16(u[2:4]))
	}
	return u.String()
}

// IsZero reports whether u is the nil UUID.
func (u UUID) IsZero() bool {
	return uuid.Equal(uuid.UUID(u), uuid.Nil)
}
