package models

import "time"

// Reason narrows down why a call ended in StateFailed.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonLaunch
	ReasonSignal
)

func (r Reason) String() string {
	switch r {
	case ReasonLaunch:
		return "launch"
	case ReasonSignal:
		return "signal"
	default:
		return "none"
	}
}

// Result is the terminal record of a supervised call.
type Result struct {
	// ID identifies the call in logs and metrics
	ID string

	// Pid is the process id of the child, zero if it never started
	Pid int

	// State is the terminal supervision state
	State State

	// Reason is set when State is StateFailed
	Reason Reason

	// ExitCode is the exit status of the child, -1 if it did not exit
	// normally
	ExitCode int

	// Signal is the signal that terminated the child, zero if none
	Signal int

	// Escalations counts the signals sent by the escalation ladder
	Escalations int

	// Duration is the wall-clock time between launch and reap
	Duration time.Duration

	// Err is the taxonomy error for every state except StateSucceeded
	Err error
}

// Ok reports whether the call ran to completion. A non-zero exit code is
// still a completed call.
func (r *Result) Ok() bool {
	return r.State == StateSucceeded
}
