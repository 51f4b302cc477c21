package backend

// State is the lifecycle position of a Link.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateSubscribed
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateSubscribed:
		return "subscribed"
	case StateClosing:
		return "closing"
	}
	return "unknown"
}

// Active reports whether the link holds an open transport.
func (s State) Active() bool {
	return s == StateConnected || s == StateSubscribed
}
