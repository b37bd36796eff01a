package goble

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/srg/blepoll/internal/device"
)

// NormalizeError maps go-ble specific failures onto device errors, then
// falls back to the shared message matching in device.NormalizeError.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", device.ErrNotConnected, err)
	case containsIgnoreCase(err.Error(), "operation not permitted"):
		return fmt.Errorf("%w: %v (raw HCI access requires CAP_NET_ADMIN)", device.ErrBluetoothOff, err)
	default:
		return device.NormalizeError(err)
	}
}

// containsIgnoreCase checks the substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
