package session

import (
	"fmt"
)

// Kind identifies which step of a run failed.
type Kind string

const (
	KindNoAdapter              Kind = "no_adapter"
	KindScan                   Kind = "scan"
	KindScanProperty           Kind = "scan_property"
	KindNoMatchFound           Kind = "no_match_found"
	KindConnection             Kind = "connection"
	KindDiscovery              Kind = "discovery"
	KindCharacteristicNotFound Kind = "characteristic_not_found"
	KindRead                   Kind = "read"
)

var kindLabels = map[Kind]string{
	KindNoAdapter:              "no bluetooth adapter",
	KindScan:                   "scan failed",
	KindScanProperty:           "failed to read peripheral properties",
	KindNoMatchFound:           "no matching peripheral",
	KindConnection:             "connection failed",
	KindDiscovery:              "service discovery failed",
	KindCharacteristicNotFound: "characteristic not found",
	KindRead:                   "read failed",
}

func (k Kind) String() string {
	if label, ok := kindLabels[k]; ok {
		return label
	}
	return string(k)
}

// RunError is returned by every stage of a run. Stage is the state the run
// was in when the failure happened.
type RunError struct {
	Kind  Kind
	Stage State
	// Attempt is the 1-based read number for KindRead.
	Attempt int
	Err     error
}

func (e *RunError) Error() string {
	if e == nil {
		return "<nil>"
	}

	label := e.Kind.String()
	if e.Kind == KindRead && e.Attempt > 0 {
		label = fmt.Sprintf("read %d failed", e.Attempt)
	}
	if e.Err == nil {
		return label
	}
	return fmt.Sprintf("%s: %v", label, e.Err)
}

func (e *RunError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is allows errors.Is to compare RunError values by Kind
func (e *RunError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*RunError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel errors, one per kind
var (
	ErrNoAdapter              = &RunError{Kind: KindNoAdapter}
	ErrScan                   = &RunError{Kind: KindScan}
	ErrScanProperty           = &RunError{Kind: KindScanProperty}
	ErrNoMatchFound           = &RunError{Kind: KindNoMatchFound}
	ErrConnection             = &RunError{Kind: KindConnection}
	ErrDiscovery              = &RunError{Kind: KindDiscovery}
	ErrCharacteristicNotFound = &RunError{Kind: KindCharacteristicNotFound}
	ErrRead                   = &RunError{Kind: KindRead}
)

func newRunError(kind Kind, err error) *RunError {
	return &RunError{Kind: kind, Err: err}
}
