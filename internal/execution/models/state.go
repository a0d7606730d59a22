package models

// State is the supervision state of a single call. States only move
// forward: Starting -> Running -> one terminal state. A call that never
// got its child running goes from Starting to Failed, or to Cancelled if
// the caller gave up before the launch.
type State int

const (
	StateStarting State = iota
	StateRunning
	StateSucceeded
	StateFailed
	StateTimedOut
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible from s.
func (s State) Terminal() bool {
	return s >= StateSucceeded
}

// CanTransition reports whether moving from s to next is legal.
func (s State) CanTransition(next State) bool {
	switch s {
	case StateStarting:
		return next == StateRunning || next == StateFailed || next == StateCancelled
	case StateRunning:
		return next.Terminal()
	default:
		return false
	}
}
