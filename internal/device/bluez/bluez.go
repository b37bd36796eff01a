// Package bluez implements the device capability interfaces on top of the
// BlueZ D-Bus API. Documentation for the interfaces used here:
// https://git.kernel.org/pub/scm/bluetooth/bluez.git/tree/doc
package bluez

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
	"github.com/srg/blepoll/internal/device"
)

const (
	bluezBus           = "org.bluez"
	bluezAdapter1      = "org.bluez.Adapter1"
	bluezDevice1       = "org.bluez.Device1"
	bluezGattService1  = "org.bluez.GattService1"
	bluezGattChar1     = "org.bluez.GattCharacteristic1"
	dbusProperties     = "org.freedesktop.DBus.Properties"
	dbusObjectManager  = "org.freedesktop.DBus.ObjectManager"
	errorInProgress    = "org.bluez.Error.InProgress"
	rootPath           = dbus.ObjectPath("/")
	managedObjectsCall = dbusObjectManager + ".GetManagedObjects"
)

// busObject is the part of dbus.BusObject used by this package.
type busObject interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
	Path() dbus.ObjectPath
}

type objectFunc func(path dbus.ObjectPath) busObject

type managedObjects = map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// Manager enumerates BlueZ adapters over one bus connection.
type Manager struct {
	object objectFunc
	closer io.Closer
	logger *logrus.Logger
}

// NewManager connects to the system bus, or to address when it is not empty.
func NewManager(address string, logger *logrus.Logger) (*Manager, error) {
	var (
		conn *dbus.Conn
		err  error
	)
	if address == "" {
		conn, err = dbus.ConnectSystemBus()
	} else {
		conn, err = dbus.Connect(address, dbus.WithAuth(dbus.AuthAnonymous()))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to D-Bus: %w", err)
	}

	object := func(p dbus.ObjectPath) busObject {
		return conn.Object(bluezBus, p)
	}
	return newManager(object, conn, logger), nil
}

func newManager(object objectFunc, closer io.Closer, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{object: object, closer: closer, logger: logger}
}

// Adapters returns the powered adapters sorted by object path.
func (m *Manager) Adapters(ctx context.Context) ([]device.Adapter, error) {
	objects, err := m.managedObjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list BlueZ adapters: %w", normalizeError(err))
	}

	var paths []string
	for p, ifaces := range objects {
		props, ok := ifaces[bluezAdapter1]
		if !ok {
			continue
		}
		if powered, _ := variantValue[bool](props, "Powered"); !powered {
			m.logger.WithField("adapter", path.Base(string(p))).Debug("Skipping adapter that is not powered")
			continue
		}
		paths = append(paths, string(p))
	}
	sort.Strings(paths)

	adapters := make([]device.Adapter, 0, len(paths))
	for _, p := range paths {
		adapters = append(adapters, newAdapter(m, dbus.ObjectPath(p)))
	}
	return adapters, nil
}

func (m *Manager) Close() error {
	if m.closer == nil {
		return nil
	}
	return m.closer.Close()
}

func (m *Manager) managedObjects(ctx context.Context) (managedObjects, error) {
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	if err := m.object(rootPath).CallWithContext(ctx, managedObjectsCall, 0).Store(&objects); err != nil {
		return nil, err
	}
	return objects, nil
}

// variantValue extracts a typed value from a property map.
func variantValue[T any](props map[string]dbus.Variant, key string) (T, bool) {
	var zero T
	v, ok := props[key]
	if !ok {
		return zero, false
	}
	val, ok := v.Value().(T)
	if !ok {
		return zero, false
	}
	return val, true
}

// isInProgress reports whether BlueZ rejected a call because the same operation is already running.
func isInProgress(err error) bool {
	var dbusError dbus.Error
	if errors.As(err, &dbusError) {
		return dbusError.Name == errorInProgress
	}
	return strings.Contains(err.Error(), "Operation already in progress")
}

// childOf reports whether p lies strictly below parent.
func childOf(p, parent dbus.ObjectPath) bool {
	return strings.HasPrefix(string(p), string(parent)+"/")
}

// normalizeError prefixes D-Bus errors with their name, which dbus.Error
// drops when a message body is present, before mapping known states.
func normalizeError(err error) error {
	var dbusError dbus.Error
	if errors.As(err, &dbusError) && dbusError.Error() != dbusError.Name {
		err = fmt.Errorf("%s: %w", dbusError.Name, err)
	}
	return device.NormalizeError(err)
}
