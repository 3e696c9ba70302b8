package acquisition

// State is the engine's lifecycle state
type State int

const (
	StateInit State = iota
	StateConnecting
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateConnecting:
		return "connecting"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stats counts engine activity since creation
type Stats struct {
	FramesMerged   uint64
	FramesSkipped  uint64 // Frames with no events
	DecodeFailures uint64
	OpenFailures   uint64
	SessionsOpened uint64
	Resyncs        uint64
}

// Status is a point-in-time view of the engine
type Status struct {
	State   State
	LastErr error
	Stats   Stats
}
