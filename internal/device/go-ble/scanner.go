package goble

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blepoll/internal/device"
	"github.com/srg/blepoll/internal/groutine"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/sync/errgroup"
)

// Adapter is a go-ble device acting as a BLE central. Peripherals are
// remembered in the order their first advertisement arrived.
type Adapter struct {
	id     string
	dev    hciDevice
	dial   dialFunc
	logger *logrus.Logger

	mu      sync.Mutex
	known   *orderedmap.OrderedMap[string, *Peripheral]
	cancel  context.CancelFunc
	group   *errgroup.Group
	scanErr error
}

func newAdapter(id string, dev ble.Device, logger *logrus.Logger) *Adapter {
	dial := func(ctx context.Context, addr ble.Addr) (gattClient, error) {
		client, err := dev.Dial(ctx, addr)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return newAdapterWith(id, dev, dial, logger)
}

func newAdapterWith(id string, dev hciDevice, dial dialFunc, logger *logrus.Logger) *Adapter {
	return &Adapter{
		id:     id,
		dev:    dev,
		dial:   dial,
		logger: logger,
		known:  orderedmap.New[string, *Peripheral](),
	}
}

func (a *Adapter) ID() string {
	return a.id
}

// StartScan runs ble.Device.Scan in the background until StopScan or ctx cancellation.
func (a *Adapter) StartScan(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.group != nil {
		return fmt.Errorf("adapter %s: scan already in progress", a.id)
	}

	scanCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(scanCtx)
	a.cancel = cancel
	a.group = group
	a.scanErr = nil

	a.logger.WithField("adapter", a.id).Info("Starting BLE scan...")
	group.Go(groutine.Labeled(groupCtx, "ble-scan-"+a.id, func(ctx context.Context) error {
		err := a.dev.Scan(ctx, true, a.handleAdvertisement)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			a.mu.Lock()
			a.scanErr = NormalizeError(err)
			a.mu.Unlock()
			return a.scanErr
		}
		return nil
	}))
	return nil
}

// StopScan cancels the background scan and waits for it to exit.
func (a *Adapter) StopScan() error {
	a.mu.Lock()
	cancel, group := a.cancel, a.group
	a.cancel, a.group = nil, nil
	a.mu.Unlock()

	if group == nil {
		return nil
	}
	cancel()
	err := group.Wait()

	a.logger.WithFields(logrus.Fields{
		"adapter":     a.id,
		"peripherals": a.knownCount(),
	}).Info("BLE scan stopped")

	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	return nil
}

// Peripherals returns a snapshot of the peripherals seen so far.
// A scan that already failed is reported instead of an empty list.
func (a *Adapter) Peripherals(_ context.Context) ([]device.Peripheral, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.scanErr != nil {
		return nil, fmt.Errorf("scan failed: %w", a.scanErr)
	}

	result := make([]device.Peripheral, 0, a.known.Len())
	for pair := a.known.Oldest(); pair != nil; pair = pair.Next() {
		result = append(result, pair.Value)
	}
	return result, nil
}

func (a *Adapter) Close() error {
	if err := a.StopScan(); err != nil {
		a.logger.WithError(err).Debug("Scan ended with error during close")
	}
	if err := a.dev.Stop(); err != nil {
		return fmt.Errorf("failed to stop %s: %w", a.id, NormalizeError(err))
	}
	return nil
}

func (a *Adapter) handleAdvertisement(adv ble.Advertisement) {
	a.record(newAdvertisement(adv))
}

// record adds a newly seen peripheral or refreshes a known one.
func (a *Adapter) record(adv advertisement) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if p, ok := a.known.Get(adv.key()); ok {
		p.update(adv)
		return
	}

	p := newPeripheral(a, adv)
	a.known.Set(adv.key(), p)
	a.logger.WithFields(logrus.Fields{
		"device":  adv.name,
		"address": p.addr,
		"rssi":    adv.rssi,
	}).Debug("Discovered new device")
}

func (a *Adapter) knownCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.known.Len()
}
