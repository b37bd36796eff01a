package session

// State is the position of a run in its linear lifecycle.
type State int

const (
	Idle State = iota
	AdapterAcquired
	Scanning
	PeripheralFound
	Connected
	ServicesResolved
	CharacteristicResolved
	Polling
	Done
	Failed
)

var stateNames = [...]string{
	Idle:                   "Idle",
	AdapterAcquired:        "AdapterAcquired",
	Scanning:               "Scanning",
	PeripheralFound:        "PeripheralFound",
	Connected:              "Connected",
	ServicesResolved:       "ServicesResolved",
	CharacteristicResolved: "CharacteristicResolved",
	Polling:                "Polling",
	Done:                   "Done",
	Failed:                 "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Done || s == Failed
}

// next returns the only non-failure successor of s.
func (s State) next() State {
	if s >= Polling {
		return Done
	}
	return s + 1
}
