package broadcaster

type State int

const (
	StateInitializing State = iota
	StateConnecting
	StateReady
	StateRunning
	StateShuttingDown
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StateChange is the payload of eventbus.TypeStateChanged.
type StateChange struct {
	From State
	To   State
}
