package bridge

// State is the bridge lifecycle:
// STARTING → PAIRING_READY → RUNNING → STOPPED. STOPPED is terminal.
type State int32

const (
	StateStarting State = iota
	StatePairingReady
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "STARTING"
	case StatePairingReady:
		return "PAIRING_READY"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}
