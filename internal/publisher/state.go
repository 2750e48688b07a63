package publisher

// State makes the connection lifecycle explicit instead of scattering
// connected() booleans across call sites.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Transmitting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Transmitting:
		return "transmitting"
	default:
		return "unknown"
	}
}
