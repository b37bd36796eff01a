// Package device defines the Bluetooth Low Energy capabilities a run needs
// from the host stack: enumerating adapters, scanning, and connecting to a
// peripheral to discover and read its GATT characteristics.
//
// Backends live in subpackages:
//   - bluez: Linux, through the BlueZ D-Bus API
//   - go-ble: HCI sockets on Linux and CoreBluetooth on macOS
//   - simulated: in-memory peripherals described by a YAML profile
//
// Backend errors are mapped onto ConnectionError states by NormalizeError so
// callers can match them with errors.Is regardless of the backend.
package device
