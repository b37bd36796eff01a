package devicefactory

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/srg/blepoll/internal/device"
	"github.com/srg/blepoll/internal/device/bluez"
	"github.com/srg/blepoll/internal/device/go-ble"
	"github.com/srg/blepoll/internal/device/simulated"
	"github.com/srg/blepoll/pkg/config"
)

// ManagerFactory creates the device.Manager for the configured backend.
// This is a variable so that it can be overridden in tests.
var ManagerFactory = func(cfg *config.Config, logger *logrus.Logger) (device.Manager, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = config.DefaultBackend()
	}

	logger.WithField("backend", backend).Debug("Creating device manager")

	switch backend {
	case config.BackendBlueZ:
		return bluez.NewManager(cfg.DBusAddress, logger)
	case config.BackendGoBLE:
		return goble.NewManager(cfg.HCIDevice, logger), nil
	case config.BackendSimulated:
		profile, err := simulated.LoadProfile(cfg.SimulationFile)
		if err != nil {
			return nil, err
		}
		return simulated.NewManager(profile, logger), nil
	default:
		return nil, fmt.Errorf("unknown backend %q: %w", backend, device.ErrUnsupported)
	}
}
