package goble

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blepoll/internal/device"
)

// Peripheral is a device seen by a go-ble scan. It holds at most one live client.
type Peripheral struct {
	adapter *Adapter
	addr    string
	bleAddr ble.Addr

	mu      sync.RWMutex
	name    string
	rssi    int
	client  gattClient
	chars   []device.Characteristic
	handles map[string]*ble.Characteristic
}

func newPeripheral(a *Adapter, adv advertisement) *Peripheral {
	return &Peripheral{
		adapter: a,
		addr:    adv.key(),
		bleAddr: adv.addr,
		name:    adv.name,
		rssi:    adv.rssi,
	}
}

// update merges a later advertisement. Scan responses often carry the name
// while the first advertising PDU does not.
func (p *Peripheral) update(adv advertisement) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if adv.name != "" {
		p.name = adv.name
	}
	p.rssi = adv.rssi
}

func (p *Peripheral) ID() string {
	return p.addr
}

func (p *Peripheral) Properties(_ context.Context) (*device.Properties, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &device.Properties{
		Address:   p.addr,
		LocalName: p.name,
		RSSI:      p.rssi,
	}, nil
}

// Connect dials the peripheral through the adapter's device.
func (p *Peripheral) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		p.adapter.logger.WithField("address", p.addr).Warn("Connection attempt while already connected")
		return device.ErrAlreadyConnected
	}

	p.adapter.logger.WithField("address", p.addr).Debug("Dialing BLE device...")
	client, err := p.adapter.dial(ctx, p.bleAddr)
	if err != nil {
		p.adapter.logger.WithFields(logrus.Fields{
			"address": p.addr,
			"error":   err,
		}).Error("Failed to dial BLE device")
		return fmt.Errorf("failed to connect to device with address %q: %w", p.addr, NormalizeError(err))
	}

	p.client = client
	p.chars = nil
	p.handles = nil
	return nil
}

// DiscoverServices runs a full profile discovery and flattens it into the characteristic set.
// go-ble discovery is not cancellable, so ctx only bounds how long the caller waits.
func (p *Peripheral) DiscoverServices(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return device.ErrNotConnected
	}

	p.adapter.logger.WithField("address", p.addr).Debug("Discovering services and characteristics...")
	profile, err := discoverProfile(ctx, p.client)
	if err != nil {
		return err
	}

	chars := make([]device.Characteristic, 0)
	handles := make(map[string]*ble.Characteristic)
	for si, svc := range profile.Services {
		svcUUID, err := device.ParseUUID(svc.UUID.String())
		if err != nil {
			return fmt.Errorf("service %d: %w", si, err)
		}
		for ci, c := range svc.Characteristics {
			charUUID, err := device.ParseUUID(c.UUID.String())
			if err != nil {
				return fmt.Errorf("service %s characteristic %d: %w", svcUUID.Short(), ci, err)
			}
			handle := fmt.Sprintf("service%04d/char%04d", si, ci)
			chars = append(chars, device.Characteristic{
				UUID:       charUUID,
				Service:    svcUUID,
				Properties: NewProperties(c.Property),
				Handle:     handle,
			})
			handles[handle] = c
		}
	}

	p.chars = chars
	p.handles = handles
	p.adapter.logger.WithFields(logrus.Fields{
		"address":         p.addr,
		"services":        len(profile.Services),
		"characteristics": len(chars),
	}).Debug("Profile discovered successfully")
	return nil
}

func discoverProfile(ctx context.Context, client gattClient) (*ble.Profile, error) {
	type discoveryResult struct {
		profile *ble.Profile
		err     error
	}
	resultCh := make(chan discoveryResult, 1)

	go func() {
		profile, err := client.DiscoverProfile(true)
		resultCh <- discoveryResult{profile: profile, err: err}
	}()

	select {
	case result := <-resultCh:
		if result.err != nil {
			return nil, fmt.Errorf("failed to discover profile: %w", NormalizeError(result.err))
		}
		return result.profile, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Peripheral) Characteristics() []device.Characteristic {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]device.Characteristic, len(p.chars))
	copy(result, p.chars)
	return result
}

// Read issues an ATT read. go-ble reads are not cancellable, so ctx only
// bounds how long the caller waits for the result.
func (p *Peripheral) Read(ctx context.Context, char device.Characteristic) ([]byte, error) {
	p.mu.RLock()
	client := p.client
	bleChar, ok := p.handles[char.Handle]
	p.mu.RUnlock()

	if client == nil {
		return nil, fmt.Errorf("characteristic %s: %w", char.UUID.Short(), device.ErrNotConnected)
	}
	if !ok {
		return nil, &device.NotFoundError{Resource: "characteristic", IDs: []string{p.addr, char.UUID.Short()}}
	}

	type readResult struct {
		data []byte
		err  error
	}
	resultCh := make(chan readResult, 1)

	go func() {
		data, err := client.ReadCharacteristic(bleChar)
		resultCh <- readResult{data: data, err: err}
	}()

	select {
	case result := <-resultCh:
		if result.err != nil {
			return nil, fmt.Errorf("failed to read characteristic %s: %w", char.UUID.Short(), NormalizeError(result.err))
		}
		return result.data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Peripheral) Disconnect(_ context.Context) error {
	p.mu.Lock()
	client := p.client
	p.client = nil
	p.mu.Unlock()

	if client == nil {
		p.adapter.logger.Debug("Disconnect called but already disconnected")
		return nil
	}

	if err := client.CancelConnection(); err != nil {
		return fmt.Errorf("failed to disconnect %s: %w", p.addr, NormalizeError(err))
	}
	p.adapter.logger.WithField("address", p.addr).Info("BLE device disconnected successfully")
	return nil
}
