package session

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/srg/blepoll/internal/device"
)

// AcquireAdapter selects the first adapter the manager reports and closes the rest.
func AcquireAdapter(ctx context.Context, manager device.Manager, logger logrus.FieldLogger) (device.Adapter, error) {
	if logger == nil {
		logger = logrus.New()
	}

	adapters, err := manager.Adapters(ctx)
	if err != nil {
		return nil, newRunError(KindNoAdapter, fmt.Errorf("failed to enumerate adapters: %w", err))
	}
	if len(adapters) == 0 {
		return nil, newRunError(KindNoAdapter, &device.NotFoundError{Resource: "adapter"})
	}

	selected := adapters[0]
	for _, other := range adapters[1:] {
		if err := other.Close(); err != nil {
			logger.WithFields(logrus.Fields{
				"adapter": other.ID(),
				"error":   err,
			}).Warn("Failed to release unused adapter")
		}
	}

	logger.WithFields(logrus.Fields{
		"adapter":   selected.ID(),
		"available": len(adapters),
	}).Info("Bluetooth adapter acquired")
	return selected, nil
}
