// Package metrics records what the supervision engine does. The
// supervisor, the isolated call executor and the dispatcher only see the
// Collector interface.
package metrics

import (
	"time"

	"github.com/lambda-feedback/sysproc/internal/execution/models"
)

// Collector defines the interface for collecting supervision metrics
type Collector interface {
	// StateTransition records a supervision state transition
	StateTransition(from, to models.State)

	// Escalation records a signal sent by the escalation ladder
	Escalation(rung string)

	// CallFinished records the terminal state and duration of a call
	CallFinished(state models.State, duration time.Duration)

	// Outcome records the outcome of an isolated call
	Outcome(kind models.OutcomeKind)

	// LaunchFailed records a launch that never got the child running
	LaunchFailed(reason string)

	// PoolAcquire records the time spent waiting for a supervisor
	PoolAcquire(wait time.Duration)
}

type noopCollector struct{}

func (noopCollector) StateTransition(models.State, models.State)   {}
func (noopCollector) Escalation(string)                            {}
func (noopCollector) CallFinished(models.State, time.Duration)     {}
func (noopCollector) Outcome(models.OutcomeKind)                   {}
func (noopCollector) LaunchFailed(string)                          {}
func (noopCollector) PoolAcquire(time.Duration)                    {}

// NewNoop creates a collector that drops everything
func NewNoop() Collector {
	return noopCollector{}
}

// OrNoop returns c, or a no-op collector if c is nil.
func OrNoop(c Collector) Collector {
	if c == nil {
		return NewNoop()
	}
	return c
}
