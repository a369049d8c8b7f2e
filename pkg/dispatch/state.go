package dispatch

// State is the lifecycle position of a dispatched instruction.
type State uint8

const (
	StateUnknown State = iota
	StateBuilt
	StateSigned
	StateSubmitted
	StateFinalized
	StateRejected
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateBuilt:
		return "built"
	case StateSigned:
		return "signed"
	case StateSubmitted:
		return "submitted"
	case StateFinalized:
		return "finalized"
	case StateRejected:
		return "rejected"
	case StateTimedOut:
		return "timed_out"
	}
	return "unknown"
}

// IsTerminal reports whether no further transitions can occur.
func (s State) IsTerminal() bool {
	switch s {
	case StateFinalized, StateRejected, StateTimedOut:
		return true
	}
	return false
}

// CanTransitionTo reports whether next may follow s.
func (s State) CanTransitionTo(next State) bool {
	switch s {
	case StateUnknown:
		return next == StateBuilt
	case StateBuilt:
		return next == StateSigned
	case StateSigned:
		return next == StateSubmitted || next == StateRejected
	case StateSubmitted:
		return next.IsTerminal()
	}
	return false
}
