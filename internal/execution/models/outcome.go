package models

// OutcomeKind discriminates the result of an isolated call.
type OutcomeKind int

const (
	OutcomeOk OutcomeKind = iota
	OutcomeErr
	OutcomeWorkerDied
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOk:
		return "ok"
	case OutcomeErr:
		return "err"
	case OutcomeWorkerDied:
		return "worker_died"
	default:
		return "unknown"
	}
}

// Outcome is what an isolated call produced. Payload is opaque to the
// engine: the serialized value for OutcomeOk, the serialized error for
// OutcomeErr and nil for OutcomeWorkerDied.
type Outcome struct {
	Kind    OutcomeKind
	Payload []byte
}

func Ok(payload []byte) Outcome {
	return Outcome{Kind: OutcomeOk, Payload: payload}
}

func Err(payload []byte) Outcome {
	return Outcome{Kind: OutcomeErr, Payload: payload}
}

func WorkerDied() Outcome {
	return Outcome{Kind: OutcomeWorkerDied}
}
