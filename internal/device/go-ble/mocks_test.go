//go:build test

package goble

import (
	"context"

	"github.com/go-ble/ble"
	"github.com/stretchr/testify/mock"
)

// MockHCIDevice is a testify double for the scanning side of ble.Device.
// Embedding ble.Device lets it stand in where the full interface is required;
// only Scan, Stop and Dial are implemented.
type MockHCIDevice struct {
	ble.Device
	mock.Mock
}

func (m *MockHCIDevice) Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
	args := m.Called(ctx, allowDup, h)
	return args.Error(0)
}

func (m *MockHCIDevice) Stop() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockHCIDevice) Dial(ctx context.Context, addr ble.Addr) (ble.Client, error) {
	args := m.Called(ctx, addr)
	if c, ok := args.Get(0).(ble.Client); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockGATTClient is a testify double for the client calls a peripheral makes.
type MockGATTClient struct {
	mock.Mock
}

func (m *MockGATTClient) DiscoverProfile(force bool) (*ble.Profile, error) {
	args := m.Called(force)
	if p, ok := args.Get(0).(*ble.Profile); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGATTClient) ReadCharacteristic(c *ble.Characteristic) ([]byte, error) {
	args := m.Called(c)
	if b, ok := args.Get(0).([]byte); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGATTClient) CancelConnection() error {
	args := m.Called()
	return args.Error(0)
}

// fakeAdvertisement overrides the fields newAdvertisement copies.
// bleAddr, when set, is returned as is instead of a public address built from addr.
type fakeAdvertisement struct {
	ble.Advertisement
	addr    string
	bleAddr ble.Addr
	name    string
	rssi    int
}

func (a fakeAdvertisement) Addr() ble.Addr {
	if a.bleAddr != nil {
		return a.bleAddr
	}
	return ble.NewAddr(a.addr)
}

func (a fakeAdvertisement) LocalName() string { return a.name }

func (a fakeAdvertisement) RSSI() int { return a.rssi }
