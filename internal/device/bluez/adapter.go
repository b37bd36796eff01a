package bluez

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
	"github.com/srg/blepoll/internal/device"
)

const stopDiscoveryTimeout = 10 * time.Second

// Adapter is a BlueZ adapter object such as /org/bluez/hci0.
type Adapter struct {
	m    *Manager
	path dbus.ObjectPath
	obj  busObject

	// peripherals keeps one handle per device object so repeated listings
	// hand out the same Peripheral.
	peripherals *hashmap.Map[string, *Peripheral]

	mu       sync.Mutex
	scanning bool
}

func newAdapter(m *Manager, p dbus.ObjectPath) *Adapter {
	return &Adapter{
		m:           m,
		path:        p,
		obj:         m.object(p),
		peripherals: hashmap.New[string, *Peripheral](),
	}
}

func (a *Adapter) ID() string {
	return path.Base(string(a.path))
}

// StartScan restricts discovery to LE transport and starts it. A discovery
// already running on the adapter is reused.
func (a *Adapter) StartScan(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	filter := map[string]dbus.Variant{
		"Transport": dbus.MakeVariant("le"),
	}
	if err := a.obj.CallWithContext(ctx, bluezAdapter1+".SetDiscoveryFilter", 0, filter).Err; err != nil {
		return fmt.Errorf("failed to set bluetooth discovery filter: %w", normalizeError(err))
	}

	if err := a.obj.CallWithContext(ctx, bluezAdapter1+".StartDiscovery", 0).Err; err != nil && !isInProgress(err) {
		return fmt.Errorf("failed to start bluetooth discovery: %w", normalizeError(err))
	}

	a.scanning = true
	a.m.logger.WithField("adapter", a.ID()).Info("Starting BLE scan...")
	return nil
}

func (a *Adapter) StopScan() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.scanning {
		return nil
	}
	a.scanning = false

	ctx, cancel := context.WithTimeout(context.Background(), stopDiscoveryTimeout)
	defer cancel()
	if err := a.obj.CallWithContext(ctx, bluezAdapter1+".StopDiscovery", 0).Err; err != nil {
		return fmt.Errorf("failed to stop bluetooth discovery: %w", normalizeError(err))
	}

	a.m.logger.WithFields(logrus.Fields{
		"adapter":     a.ID(),
		"peripherals": a.peripherals.Len(),
	}).Info("BLE scan stopped")
	return nil
}

// Peripherals lists the Device1 objects below this adapter, sorted by object path.
func (a *Adapter) Peripherals(ctx context.Context) ([]device.Peripheral, error) {
	objects, err := a.m.managedObjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list BlueZ devices: %w", normalizeError(err))
	}

	var paths []string
	for p, ifaces := range objects {
		if _, ok := ifaces[bluezDevice1]; !ok || !childOf(p, a.path) {
			continue
		}
		paths = append(paths, string(p))
	}
	sort.Strings(paths)

	result := make([]device.Peripheral, 0, len(paths))
	for _, p := range paths {
		periph, _ := a.peripherals.GetOrInsert(p, newPeripheral(a, dbus.ObjectPath(p)))
		result = append(result, periph)
	}
	return result, nil
}

func (a *Adapter) Close() error {
	return a.StopScan()
}
