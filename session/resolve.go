package session

import (
	"context"
	"errors"

	"github.com/srg/blepoll/internal/device"
)

// Target is a characteristic confirmed present on a Link.
type Target struct {
	link *Link
	char device.Characteristic
}

// ResolveCharacteristic searches the link's characteristic set for uuid.
// The first characteristic with an equal UUID wins.
func ResolveCharacteristic(link *Link, uuid device.UUID) (*Target, error) {
	if link == nil {
		return nil, newRunError(KindCharacteristicNotFound, errors.New("no connected peripheral"))
	}

	for _, c := range link.chars {
		if c.UUID == uuid {
			link.logger.WithField("characteristic", c.String()).Info("Characteristic resolved")
			return &Target{link: link, char: c}, nil
		}
	}

	return nil, newRunError(KindCharacteristicNotFound, &device.NotFoundError{
		Resource: "characteristic",
		IDs:      []string{link.peripheral.ID(), uuid.Short()},
	})
}

// Characteristic returns the resolved characteristic
func (t *Target) Characteristic() device.Characteristic {
	return t.char
}

// Read reads the current value of the characteristic.
func (t *Target) Read(ctx context.Context) ([]byte, error) {
	return t.link.peripheral.Read(ctx, t.char)
}
