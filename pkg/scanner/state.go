package scanner

// State is a step of the scan state machine.
type State int

const (
	StateInit State = iota
	StateSelecting
	StateOpening
	StateSeekRestoring
	StateStreaming
	StateFinalizing
	StateDone
	StateError
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateSelecting:
		return "selecting"
	case StateOpening:
		return "opening"
	case StateSeekRestoring:
		return "seek-restoring"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return "invalid"
	}
}
