package device

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *NotFoundError
		expected string
	}{
		{
			name:     "no identifiers",
			err:      &NotFoundError{Resource: "adapter"},
			expected: "adapter not found",
		},
		{
			name:     "single identifier",
			err:      &NotFoundError{Resource: "peripheral", IDs: []string{"AA:BB"}},
			expected: `peripheral "AA:BB" not found`,
		},
		{
			name:     "nested identifiers",
			err:      &NotFoundError{Resource: "characteristic", IDs: []string{"AA:BB", "2a5f"}},
			expected: `characteristic "2a5f" not found on "AA:BB"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestConnectionError_Is(t *testing.T) {
	wrapped := fmt.Errorf("connect: %w", &ConnectionError{State: NotConnected, Msg: "link lost"})

	assert.True(t, errors.Is(wrapped, ErrNotConnected), "errors.Is MUST match by state")
	assert.False(t, errors.Is(wrapped, ErrAlreadyConnected), "errors.Is MUST NOT match a different state")
	assert.True(t, IsConnectionState(wrapped, NotConnected))
	assert.False(t, IsConnectionState(errors.New("plain"), NotConnected))
	assert.Equal(t, "not_connected: link lost", (&ConnectionError{State: NotConnected, Msg: "link lost"}).Error())
	assert.Equal(t, "bluetooth_off", ErrBluetoothOff.Error())
}

func TestNormalizeError(t *testing.T) {
	tests := []struct {
		name  string
		input error
		want  error
	}{
		{name: "darwin powered off", input: errors.New("central manager has invalid state: have=4 want=5"), want: ErrBluetoothOff},
		{name: "bluez not ready", input: errors.New("org.bluez.Error.NotReady: Resource Not Ready"), want: ErrBluetoothOff},
		{name: "already connected", input: errors.New("Device already connected"), want: ErrAlreadyConnected},
		{name: "bluez already connected", input: errors.New("org.bluez.Error.AlreadyConnected"), want: ErrAlreadyConnected},
		{name: "disconnected", input: errors.New("peripheral disconnected"), want: ErrNotConnected},
		{name: "bluez not connected", input: errors.New("org.bluez.Error.NotConnected: Not Connected"), want: ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeError(tt.input)
			assert.ErrorIs(t, got, tt.want)
			assert.Contains(t, got.Error(), tt.input.Error(), "normalized error MUST keep the backend message")
		})
	}

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, NormalizeError(nil))
	})

	t.Run("unknown error is returned unchanged", func(t *testing.T) {
		orig := errors.New("att: read not permitted")
		assert.Same(t, orig, NormalizeError(orig))
	})

	t.Run("already structured error is returned unchanged", func(t *testing.T) {
		orig := fmt.Errorf("read: %w", ErrNotConnected)
		assert.Same(t, orig, NormalizeError(orig))
	})
}

func TestProperty(t *testing.T) {
	p := ParseProperties("read", " Notify ", "bogus")

	assert.True(t, p.Has(PropRead))
	assert.True(t, p.Has(PropNotify))
	assert.False(t, p.Has(PropWrite))
	assert.Equal(t, "read,notify", p.String())
	assert.Equal(t, "none", ParseProperties().String())
	assert.Equal(t, "none", ParseProperties("").String())
}

func TestCharacteristic_String(t *testing.T) {
	c := Characteristic{
		UUID:       UUID16(0x2A5F),
		Service:    UUID16(0x1810),
		Properties: PropRead,
	}
	assert.Equal(t, "2a5f (service 1810, read)", c.String())
}
