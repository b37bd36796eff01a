package session

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blepoll/internal/device"
)

const disconnectTimeout = 5 * time.Second

// ConnectOptions defines options for establishing a link
type ConnectOptions struct {
	// Timeout bounds connection and service discovery together. Zero means no bound.
	Timeout time.Duration
	// OnConnected, if set, runs after the connection is up and before service discovery.
	OnConnected func()
}

// Link is a connected peripheral whose services have been discovered.
// It is only obtainable from Connect.
type Link struct {
	peripheral device.Peripheral
	chars      []device.Characteristic
	logger     logrus.FieldLogger
}

// Connect opens a connection to peripheral and discovers its services. If
// discovery fails the connection is closed again before returning.
func Connect(ctx context.Context, peripheral device.Peripheral, opts *ConnectOptions, logger logrus.FieldLogger) (*Link, error) {
	if opts == nil {
		opts = &ConnectOptions{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = logrus.New()
	}

	connectCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	logger.WithFields(logrus.Fields{
		"peripheral": peripheral.ID(),
		"timeout":    opts.Timeout,
	}).Info("Connecting to peripheral...")

	if err := peripheral.Connect(connectCtx); err != nil {
		return nil, newRunError(KindConnection, err)
	}
	if opts.OnConnected != nil {
		opts.OnConnected()
	}

	link := &Link{peripheral: peripheral, logger: logger}
	if err := peripheral.DiscoverServices(connectCtx); err != nil {
		link.Disconnect(ctx)
		return nil, newRunError(KindDiscovery, err)
	}

	link.chars = peripheral.Characteristics()
	logger.WithFields(logrus.Fields{
		"peripheral":      peripheral.ID(),
		"characteristics": len(link.chars),
	}).Info("Services resolved")
	return link, nil
}

// Peripheral returns the connected peripheral
func (l *Link) Peripheral() device.Peripheral {
	return l.peripheral
}

// Characteristics returns the characteristic set discovered for this connection.
func (l *Link) Characteristics() []device.Characteristic {
	result := make([]device.Characteristic, len(l.chars))
	copy(result, l.chars)
	return result
}

// Disconnect closes the connection. It keeps working after ctx is cancelled
// so cleanup still happens on interrupt. Failures are logged only.
func (l *Link) Disconnect(ctx context.Context) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), disconnectTimeout)
	defer cancel()

	if err := l.peripheral.Disconnect(dctx); err != nil {
		l.logger.WithFields(logrus.Fields{
			"peripheral": l.peripheral.ID(),
			"error":      err,
		}).Warn("Failed to disconnect peripheral")
		return
	}
	l.logger.WithField("peripheral", l.peripheral.ID()).Debug("Peripheral disconnected")
}
