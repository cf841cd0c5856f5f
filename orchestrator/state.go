package orchestrator

// State is the lifecycle of a language backend.
type State int

const (
	Uninitialized State = iota
	Initializing
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// LibraryState is the load state of one optional library.
type LibraryState int

const (
	NotLoaded LibraryState = iota
	Loading
	Loaded
)

func (s LibraryState) String() string {
	switch s {
	case NotLoaded:
		return "not-loaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	default:
		return "unknown"
	}
}
