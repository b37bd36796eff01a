package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// NotFoundError represents an error when a BLE resource is not found
type NotFoundError struct {
	Resource string   // "adapter", "peripheral", "characteristic"
	IDs      []string // One or more identifiers, outermost first
}

func (e *NotFoundError) Error() string {
	if len(e.IDs) == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	if len(e.IDs) == 1 {
		return fmt.Sprintf("%s %q not found", e.Resource, e.IDs[0])
	}
	return fmt.Sprintf("%s %q not found on %q", e.Resource, e.IDs[len(e.IDs)-1], e.IDs[0])
}

// ConnectionState represents the specific kind of connection state failure
type ConnectionState string

const (
	NotConnected     ConnectionState = "not_connected"
	AlreadyConnected ConnectionState = "already_connected"
	BluetoothOff     ConnectionState = "bluetooth_off"
)

// ConnectionError represents any connection-related problem
type ConnectionError struct {
	State ConnectionState
	Msg   string
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for connection states
var (
	ErrNotConnected     = &ConnectionError{State: NotConnected}
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
	ErrBluetoothOff     = &ConnectionError{State: BluetoothOff}
)

// ErrUnsupported is returned by backends that cannot run on the current platform.
var ErrUnsupported = errors.New("unsupported")

// NormalizeError maps known backend error strings to structured ConnectionError types.
// It ensures consistent handling even if the upstream library changes messages slightly.
// Returns wrapped errors to preserve original context.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return err
	}

	msg := err.Error()
	switch {
	case containsIgnoreCase(msg, "central manager has invalid state: have=4"),
		containsIgnoreCase(msg, "bluetooth is turned off"),
		containsIgnoreCase(msg, "org.bluez.Error.NotReady"):
		return fmt.Errorf("%w: %v", ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "device already connected"),
		containsIgnoreCase(msg, "org.bluez.Error.AlreadyConnected"):
		return fmt.Errorf("%w: %v", ErrAlreadyConnected, err)
	case containsIgnoreCase(msg, "device not connected"),
		containsIgnoreCase(msg, "disconnected"),
		containsIgnoreCase(msg, "org.bluez.Error.NotConnected"):
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	default:
		return err
	}
}

// containsIgnoreCase checks the substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// IsConnectionState reports whether err is a ConnectionError with the given state
func IsConnectionState(err error, state ConnectionState) bool {
	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return cerr.State == state
	}
	return false
}

// Manager enumerates the local Bluetooth adapters of one backend.
type Manager interface {
	// Adapters returns the usable adapters in a stable order.
	Adapters(ctx context.Context) ([]Adapter, error)
	Close() error
}

// Adapter is a handle to one local Bluetooth radio.
type Adapter interface {
	ID() string

	// StartScan starts discovery without any service filter and returns
	// immediately; advertisements accumulate until StopScan.
	StartScan(ctx context.Context) error
	StopScan() error

	// Peripherals returns the peripherals currently known to the adapter.
	Peripherals(ctx context.Context) ([]Peripheral, error)

	Close() error
}

// Properties is the advertised data of a peripheral. LocalName is empty
// when the peripheral did not advertise a name.
type Properties struct {
	Address   string
	LocalName string
	RSSI      int
}

// Peripheral is a remote BLE device known to an adapter.
type Peripheral interface {
	ID() string
	Properties(ctx context.Context) (*Properties, error)

	Connect(ctx context.Context) error
	// DiscoverServices populates the characteristic set for the current connection.
	DiscoverServices(ctx context.Context) error
	// Characteristics returns the set populated by the last DiscoverServices call.
	Characteristics() []Characteristic
	Read(ctx context.Context, char Characteristic) ([]byte, error)
	Disconnect(ctx context.Context) error
}

// Characteristic is a GATT characteristic discovered on a connected peripheral.
type Characteristic struct {
	UUID       UUID
	Service    UUID
	Properties Property
	// Handle locates the characteristic inside its backend (object path, profile index).
	Handle string
}

func (c Characteristic) String() string {
	return fmt.Sprintf("%s (service %s, %s)", c.UUID.Short(), c.Service.Short(), c.Properties)
}
