package session

// State is the lifecycle position of one call session. It only moves forward:
// Init, Connecting, Active, Ending, Logged.
type State int

const (
	StateInit State = iota
	StateConnecting
	StateActive
	StateEnding
	StateLogged
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateConnecting:
		return "CONNECTING"
	case StateActive:
		return "ACTIVE"
	case StateEnding:
		return "ENDING"
	case StateLogged:
		return "LOGGED"
	default:
		return "UNKNOWN"
	}
}
