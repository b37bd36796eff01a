package main

import (
	"errors"
	"fmt"

	"github.com/srg/blepoll/internal/device"
	"github.com/srg/blepoll/session"
)

// Command-level errors
var (
	// ErrInvalidConfig wraps configuration problems found before any Bluetooth work starts.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// FormatUserError renders err as "<stage>: <reason>" with a hint for the
// failures a user can usually fix themselves.
func FormatUserError(err error) string {
	var runErr *session.RunError
	if !errors.As(err, &runErr) {
		return err.Error()
	}

	msg := fmt.Sprintf("%s: %s", stageLabel(runErr), runErr.Error())
	switch {
	case errors.Is(err, device.ErrBluetoothOff):
		msg += " (is Bluetooth turned on?)"
	case errors.Is(err, session.ErrNoAdapter):
		msg += " (check that a Bluetooth adapter is present and accessible)"
	case errors.Is(err, session.ErrNoMatchFound):
		msg += " (is the device powered and advertising? try a longer --scan-duration)"
	}
	return msg
}

// stageLabel names the step of the run that failed.
func stageLabel(err *session.RunError) string {
	switch err.Kind {
	case session.KindNoAdapter:
		return "adapter"
	case session.KindScan, session.KindScanProperty, session.KindNoMatchFound:
		return "scan"
	case session.KindConnection, session.KindDiscovery:
		return "connect"
	case session.KindCharacteristicNotFound:
		return "resolve"
	case session.KindRead:
		return "poll"
	default:
		return err.Stage.String()
	}
}
