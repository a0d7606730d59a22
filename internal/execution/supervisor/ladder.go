package supervisor

import (
	"time"

	"github.com/lambda-feedback/sysproc/internal/execution/launcher"
)

// Rung is a step of the escalation ladder.
type Rung int

const (
	RungIdle Rung = iota
	RungInterrupt
	RungTerminate
	RungKill
)

func (r Rung) String() string {
	switch r {
	case RungIdle:
		return "idle"
	case RungInterrupt:
		return "interrupt"
	case RungTerminate:
		return "terminate"
	case RungKill:
		return "kill"
	default:
		return "unknown"
	}
}

// ladder escalates from a polite interrupt to an unconditional kill of
// the process group. It moves up one rung whenever the grace window of
// the current rung elapsed or the trigger was repeated. Once on the kill
// rung the kill is re-sent every grace window, so there is no state in
// which an ignored signal lets the child survive.
type ladder struct {
	rung     Rung
	attempts int
	lastSent time.Time
	grace    time.Duration
}

func newLadder(grace time.Duration) ladder {
	return ladder{grace: grace}
}

// step returns the rung whose signal has to be sent now, if any.
func (l *ladder) step(now time.Time, repeated bool) (Rung, bool) {
	if l.rung != RungIdle && !repeated && now.Sub(l.lastSent) < l.grace {
		return l.rung, false
	}

	if l.rung < RungKill {
		l.rung++
	}

	l.attempts++
	l.lastSent = now

	return l.rung, true
}

// signal maps a rung to the request it sends. The polite rungs address
// the child, the kill rung its whole group.
func (r Rung) signal() (launcher.Signal, bool) {
	switch r {
	case RungInterrupt:
		return launcher.Interrupt, false
	case RungTerminate:
		return launcher.Terminate, false
	default:
		return launcher.Kill, true
	}
}
