package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blepoll/internal/device"
)

// ScanOptions configures the discovery window and the name filter
type ScanOptions struct {
	Duration   time.Duration
	TargetName string
}

// DefaultScanOptions returns default scanning options
func DefaultScanOptions() *ScanOptions {
	return &ScanOptions{
		Duration:   2 * time.Second,
		TargetName: "choicemmed",
	}
}

// DiscoveredPeripheral is the peripheral picked by FindPeripheral together
// with the properties it was matched on.
type DiscoveredPeripheral struct {
	Peripheral device.Peripheral
	Properties device.Properties
}

// MatchesName reports whether name contains target, ignoring case.
func MatchesName(name, target string) bool {
	return strings.Contains(strings.ToLower(name), strings.ToLower(target))
}

// FindPeripheral scans for opts.Duration without any service filter and
// returns the first known peripheral whose local name matches
// opts.TargetName. Peripherals are checked in the order the adapter lists
// them; a properties failure on any of them ends the lookup. The scan is
// stopped before FindPeripheral returns.
func FindPeripheral(ctx context.Context, adapter device.Adapter, opts *ScanOptions, logger logrus.FieldLogger) (*DiscoveredPeripheral, error) {
	if opts == nil {
		opts = DefaultScanOptions()
	}
	if logger == nil {
		logger = logrus.New()
	}

	logger.WithFields(logrus.Fields{
		"adapter":  adapter.ID(),
		"duration": opts.Duration,
		"target":   opts.TargetName,
	}).Info("Starting BLE scan...")

	if err := adapter.StartScan(ctx); err != nil {
		return nil, newRunError(KindScan, err)
	}
	defer func() {
		if err := adapter.StopScan(); err != nil {
			logger.WithError(err).Warn("Failed to stop BLE scan")
		}
	}()

	timer := time.NewTimer(opts.Duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	peripherals, err := adapter.Peripherals(ctx)
	if err != nil {
		return nil, newRunError(KindScan, err)
	}
	logger.WithField("device_count", len(peripherals)).Info("BLE scan completed")

	for _, p := range peripherals {
		props, err := p.Properties(ctx)
		if err != nil {
			return nil, newRunError(KindScanProperty, fmt.Errorf("peripheral %s: %w", p.ID(), err))
		}

		if !MatchesName(props.LocalName, opts.TargetName) {
			logger.WithFields(logrus.Fields{
				"address": props.Address,
				"name":    props.LocalName,
			}).Debug("Skipping peripheral")
			continue
		}

		logger.WithFields(logrus.Fields{
			"address": props.Address,
			"name":    props.LocalName,
			"rssi":    props.RSSI,
		}).Info("Found matching peripheral")
		return &DiscoveredPeripheral{Peripheral: p, Properties: *props}, nil
	}

	return nil, newRunError(KindNoMatchFound,
		fmt.Errorf("no peripheral name contains %q among %d discovered", opts.TargetName, len(peripherals)))
}
