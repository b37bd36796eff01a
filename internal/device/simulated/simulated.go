// Package simulated implements the device capability interfaces in memory,
// driven by a Profile. It backs the test suites and the "simulated" CLI backend.
package simulated

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blepoll/internal/device"
)

// Manager is an in-memory device.Manager.
type Manager struct {
	profile  *Profile
	adapters []*Adapter
	logger   *logrus.Logger
}

// NewManager builds simulated adapters from a profile.
func NewManager(profile *Profile, logger *logrus.Logger) *Manager {
	if profile == nil {
		profile = &Profile{}
	}
	if logger == nil {
		logger = logrus.New()
	}

	m := &Manager{profile: profile, logger: logger}
	for _, ac := range profile.Adapters {
		a := &Adapter{id: ac.ID, config: ac, logger: logger, now: time.Now}
		for _, pc := range ac.Peripherals {
			a.peripherals = append(a.peripherals, &Peripheral{config: pc, adapter: a})
		}
		m.adapters = append(m.adapters, a)
	}
	return m
}

func (m *Manager) Adapters(_ context.Context) ([]device.Adapter, error) {
	if m.profile.EnumerateError != "" {
		return nil, device.NormalizeError(errors.New(m.profile.EnumerateError))
	}
	result := make([]device.Adapter, 0, len(m.adapters))
	for _, a := range m.adapters {
		result = append(result, a)
	}
	return result, nil
}

func (m *Manager) Close() error {
	return nil
}

// Adapter returns the simulated adapter with the given id, or nil.
func (m *Manager) Adapter(id string) *Adapter {
	for _, a := range m.adapters {
		if a.id == id {
			return a
		}
	}
	return nil
}

// Adapter is an in-memory device.Adapter.
type Adapter struct {
	id          string
	config      AdapterConfig
	peripherals []*Peripheral
	logger      *logrus.Logger
	now         func() time.Time

	mu          sync.Mutex
	scanStarted time.Time
	scanStopped time.Time
	scanning    bool
	closed      bool
	active      int
	maxActive   int
}

func (a *Adapter) ID() string {
	return a.id
}

func (a *Adapter) StartScan(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return fmt.Errorf("adapter %s is closed", a.id)
	}
	if a.config.ScanError != "" {
		return device.NormalizeError(errors.New(a.config.ScanError))
	}
	if a.scanning {
		return fmt.Errorf("adapter %s: scan already in progress", a.id)
	}
	a.scanning = true
	a.scanStarted = a.now()
	a.scanStopped = time.Time{}
	a.logger.WithField("adapter", a.id).Debug("Simulated scan started")
	return nil
}

func (a *Adapter) StopScan() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.scanning {
		a.scanning = false
		a.scanStopped = a.now()
	}
	return nil
}

// Peripherals returns the peripherals whose AppearAfter elapsed during discovery.
func (a *Adapter) Peripherals(_ context.Context) ([]device.Peripheral, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.scanStarted.IsZero() {
		return nil, nil
	}
	end := a.scanStopped
	if a.scanning || end.IsZero() {
		end = a.now()
	}
	elapsed := end.Sub(a.scanStarted)

	result := make([]device.Peripheral, 0, len(a.peripherals))
	for _, p := range a.peripherals {
		if p.config.AppearAfter <= elapsed {
			result = append(result, p)
		}
	}
	return result, nil
}

func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.scanning = false
	return nil
}

// Closed reports whether Close was called.
func (a *Adapter) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// Scanning reports whether a scan is in progress.
func (a *Adapter) Scanning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scanning
}

// MaxActiveConnections reports the highest number of simultaneous connections seen.
func (a *Adapter) MaxActiveConnections() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.maxActive
}

// Peripheral returns the simulated peripheral with the given address, or nil.
func (a *Adapter) Peripheral(address string) *Peripheral {
	for _, p := range a.peripherals {
		if strings.EqualFold(p.config.Address, address) {
			return p
		}
	}
	return nil
}

func (a *Adapter) connectionOpened() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active++
	if a.active > a.maxActive {
		a.maxActive = a.active
	}
}

func (a *Adapter) connectionClosed() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active--
}

// Peripheral is an in-memory device.Peripheral.
type Peripheral struct {
	config  PeripheralConfig
	adapter *Adapter

	mu            sync.Mutex
	connected     bool
	discovered    bool
	chars         []device.Characteristic
	charConfigs   map[string]*charState
	reads         int
	discoverCalls int
	disconnects   int
}

type charState struct {
	config CharacteristicConfig
	reads  int
}

func (p *Peripheral) ID() string {
	return p.config.Address
}

func (p *Peripheral) Properties(_ context.Context) (*device.Properties, error) {
	if p.config.PropertiesError != "" {
		return nil, device.NormalizeError(errors.New(p.config.PropertiesError))
	}
	return &device.Properties{
		Address:   p.config.Address,
		LocalName: p.config.Name,
		RSSI:      p.config.RSSI,
	}, nil
}

func (p *Peripheral) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if p.connected {
		return device.ErrAlreadyConnected
	}
	if p.config.ConnectError != "" {
		return device.NormalizeError(errors.New(p.config.ConnectError))
	}
	p.connected = true
	p.discovered = false
	p.chars = nil
	p.adapter.connectionOpened()
	return nil
}

func (p *Peripheral) DiscoverServices(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.discoverCalls++
	if !p.connected {
		return device.ErrNotConnected
	}
	if p.config.DiscoverError != "" {
		return device.NormalizeError(errors.New(p.config.DiscoverError))
	}

	p.chars = nil
	p.charConfigs = make(map[string]*charState)
	for si, svc := range p.config.Services {
		svcUUID, err := device.ParseUUID(svc.UUID)
		if err != nil {
			return fmt.Errorf("service %d: %w", si, err)
		}
		for ci, cc := range svc.Characteristics {
			charUUID, err := device.ParseUUID(cc.UUID)
			if err != nil {
				return fmt.Errorf("service %s characteristic %d: %w", svc.UUID, ci, err)
			}
			handle := fmt.Sprintf("service%04d/char%04d", si, ci)
			p.chars = append(p.chars, device.Characteristic{
				UUID:       charUUID,
				Service:    svcUUID,
				Properties: device.ParseProperties(strings.Split(cc.Properties, ",")...),
				Handle:     handle,
			})
			p.charConfigs[handle] = &charState{config: cc}
		}
	}
	p.discovered = true
	return nil
}

func (p *Peripheral) Characteristics() []device.Characteristic {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := make([]device.Characteristic, len(p.chars))
	copy(result, p.chars)
	return result
}

// Read returns the next scripted outcome for the characteristic, then its static value.
func (p *Peripheral) Read(ctx context.Context, char device.Characteristic) ([]byte, error) {
	p.mu.Lock()
	p.reads++
	if !p.connected {
		p.mu.Unlock()
		return nil, device.ErrNotConnected
	}
	state, ok := p.charConfigs[char.Handle]
	if !p.discovered || !ok {
		p.mu.Unlock()
		return nil, &device.NotFoundError{Resource: "characteristic", IDs: []string{p.config.Address, char.UUID.Short()}}
	}
	idx := state.reads
	state.reads++
	cfg := state.config
	p.mu.Unlock()

	if idx >= len(cfg.Reads) {
		return append([]byte(nil), cfg.Value...), nil
	}

	r := cfg.Reads[idx]
	if r.Delay > 0 {
		timer := time.NewTimer(r.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if r.Error != "" {
		return nil, device.NormalizeError(errors.New(r.Error))
	}
	return append([]byte(nil), r.Value...), nil
}

func (p *Peripheral) Disconnect(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.disconnects++
	if !p.connected {
		return nil
	}
	p.connected = false
	p.adapter.connectionClosed()
	return nil
}

// ReadCount reports how many Read calls were made.
func (p *Peripheral) ReadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads
}

// DiscoverCalls reports how many DiscoverServices calls were made.
func (p *Peripheral) DiscoverCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.discoverCalls
}

// Connected reports whether the peripheral is currently connected.
func (p *Peripheral) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Disconnects reports how many Disconnect calls were made.
func (p *Peripheral) Disconnects() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disconnects
}
