package goble

import (
	"context"
	"fmt"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blepoll/internal/device"
)

// AnyDevice selects every HCI device the host reports.
const AnyDevice = -1

// DeviceFactory opens the HCI device with the given index (can be overridden in tests)
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = openDevice

// DeviceIDs lists the HCI device indexes present on the host (can be overridden in tests)
var DeviceIDs = hciDeviceIDs

// Manager enumerates go-ble devices, one per HCI index.
type Manager struct {
	deviceID int
	logger   *logrus.Logger
}

// NewManager creates a Manager. deviceID restricts enumeration to a single
// HCI index; pass AnyDevice to consider all of them.
func NewManager(deviceID int, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{deviceID: deviceID, logger: logger}
}

// Adapters opens every candidate device in index order. Devices that fail to
// open are skipped; if none opens, the last failure is returned.
func (m *Manager) Adapters(_ context.Context) ([]device.Adapter, error) {
	ids, err := DeviceIDs()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate HCI devices: %w", NormalizeError(err))
	}

	var (
		adapters []device.Adapter
		lastErr  error
	)
	for _, id := range ids {
		if m.deviceID != AnyDevice && id != m.deviceID {
			continue
		}

		dev, err := DeviceFactory(id)
		if err != nil {
			lastErr = fmt.Errorf("hci%d: %w", id, NormalizeError(err))
			m.logger.WithFields(logrus.Fields{
				"adapter": fmt.Sprintf("hci%d", id),
				"error":   err,
			}).Warn("Failed to open BLE device")
			continue
		}

		m.logger.WithField("adapter", fmt.Sprintf("hci%d", id)).Debug("Opened BLE device")
		adapters = append(adapters, newAdapter(fmt.Sprintf("hci%d", id), dev, m.logger))
	}

	if len(adapters) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return adapters, nil
}

func (m *Manager) Close() error {
	return nil
}

// hciDevice is the part of ble.Device used for discovery and teardown.
type hciDevice interface {
	Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error
	Stop() error
}

// gattClient is the part of ble.Client used by a connected peripheral.
type gattClient interface {
	DiscoverProfile(force bool) (*ble.Profile, error)
	ReadCharacteristic(c *ble.Characteristic) ([]byte, error)
	CancelConnection() error
}

type dialFunc func(ctx context.Context, addr ble.Addr) (gattClient, error)
