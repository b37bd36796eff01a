package bluez

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
	"github.com/srg/blepoll/internal/device"
)

// servicesResolvedPoll is how often ServicesResolved is checked after connecting.
const servicesResolvedPoll = 100 * time.Millisecond

// Peripheral is a BlueZ Device1 object.
type Peripheral struct {
	adapter *Adapter
	path    dbus.ObjectPath
	obj     busObject

	mu    sync.RWMutex
	chars []device.Characteristic
}

func newPeripheral(a *Adapter, p dbus.ObjectPath) *Peripheral {
	return &Peripheral{
		adapter: a,
		path:    p,
		obj:     a.m.object(p),
	}
}

func (p *Peripheral) ID() string {
	return string(p.path)
}

// Properties fetches the current Device1 properties from BlueZ.
func (p *Peripheral) Properties(ctx context.Context) (*device.Properties, error) {
	var props map[string]dbus.Variant
	if err := p.obj.CallWithContext(ctx, dbusProperties+".GetAll", 0, bluezDevice1).Store(&props); err != nil {
		return nil, fmt.Errorf("failed to read properties of %s: %w", p.path, normalizeError(err))
	}

	address, _ := variantValue[string](props, "Address")
	name, _ := variantValue[string](props, "Name")
	rssi, _ := variantValue[int16](props, "RSSI")
	return &device.Properties{
		Address:   address,
		LocalName: name,
		RSSI:      int(rssi),
	}, nil
}

func (p *Peripheral) Connect(ctx context.Context) error {
	p.adapter.m.logger.WithField("device", p.path).Debug("Connecting via BlueZ...")
	if err := p.obj.CallWithContext(ctx, bluezDevice1+".Connect", 0).Err; err != nil && !isInProgress(err) {
		return fmt.Errorf("bluetooth: failed to connect: %w", normalizeError(err))
	}

	p.mu.Lock()
	p.chars = nil
	p.mu.Unlock()
	return nil
}

// DiscoverServices waits for BlueZ to resolve the GATT database, then
// collects the GattCharacteristic1 objects below the device.
func (p *Peripheral) DiscoverServices(ctx context.Context) error {
	if err := p.waitServicesResolved(ctx); err != nil {
		return err
	}

	objects, err := p.adapter.m.managedObjects(ctx)
	if err != nil {
		return fmt.Errorf("failed to list GATT objects: %w", normalizeError(err))
	}

	paths := make([]string, 0)
	for objPath, ifaces := range objects {
		if _, ok := ifaces[bluezGattChar1]; ok && childOf(objPath, p.path) {
			paths = append(paths, string(objPath))
		}
	}
	sort.Strings(paths)

	chars := make([]device.Characteristic, 0, len(paths))
	for _, charPath := range paths {
		props := objects[dbus.ObjectPath(charPath)][bluezGattChar1]

		rawUUID, _ := variantValue[string](props, "UUID")
		charUUID, err := device.ParseUUID(rawUUID)
		if err != nil {
			return fmt.Errorf("characteristic %s: %w", charPath, err)
		}

		var svcUUID device.UUID
		if svcPath, ok := variantValue[dbus.ObjectPath](props, "Service"); ok {
			if raw, ok := variantValue[string](objects[svcPath][bluezGattService1], "UUID"); ok {
				if u, err := device.ParseUUID(raw); err == nil {
					svcUUID = u
				}
			}
		}

		flags, _ := variantValue[[]string](props, "Flags")
		chars = append(chars, device.Characteristic{
			UUID:       charUUID,
			Service:    svcUUID,
			Properties: device.ParseProperties(flags...),
			Handle:     charPath,
		})
	}

	p.mu.Lock()
	p.chars = chars
	p.mu.Unlock()

	p.adapter.m.logger.WithFields(logrus.Fields{
		"device":          p.path,
		"characteristics": len(chars),
	}).Debug("GATT database resolved")
	return nil
}

func (p *Peripheral) waitServicesResolved(ctx context.Context) error {
	ticker := time.NewTicker(servicesResolvedPoll)
	defer ticker.Stop()

	for {
		var resolved dbus.Variant
		err := p.obj.CallWithContext(ctx, dbusProperties+".Get", 0, bluezDevice1, "ServicesResolved").Store(&resolved)
		if err != nil {
			return fmt.Errorf("failed to read ServicesResolved: %w", normalizeError(err))
		}
		if done, _ := resolved.Value().(bool); done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Peripheral) Characteristics() []device.Characteristic {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]device.Characteristic, len(p.chars))
	copy(result, p.chars)
	return result
}

// Read calls GattCharacteristic1.ReadValue on the characteristic's object path.
func (p *Peripheral) Read(ctx context.Context, char device.Characteristic) ([]byte, error) {
	if !childOf(dbus.ObjectPath(char.Handle), p.path) {
		return nil, &device.NotFoundError{Resource: "characteristic", IDs: []string{string(p.path), char.UUID.Short()}}
	}

	var value []byte
	obj := p.adapter.m.object(dbus.ObjectPath(char.Handle))
	if err := obj.CallWithContext(ctx, bluezGattChar1+".ReadValue", 0, map[string]dbus.Variant{}).Store(&value); err != nil {
		return nil, fmt.Errorf("failed to read characteristic %s: %w", char.UUID.Short(), normalizeError(err))
	}
	return value, nil
}

func (p *Peripheral) Disconnect(ctx context.Context) error {
	if err := p.obj.CallWithContext(ctx, bluezDevice1+".Disconnect", 0).Err; err != nil {
		return fmt.Errorf("failed to disconnect %s: %w", p.path, normalizeError(err))
	}
	p.adapter.m.logger.WithField("device", p.path).Info("BLE device disconnected successfully")
	return nil
}
