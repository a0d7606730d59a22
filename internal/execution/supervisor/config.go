package supervisor

import "time"

type Config struct {
	// PollInterval is the bounded wait of one supervisor tick. It bounds
	// how late a cancellation is observed.
	PollInterval time.Duration `conf:"poll_interval"`

	// Grace is the time the escalation ladder waits for the child to die
	// before it moves to the next, more forceful signal.
	Grace time.Duration `conf:"grace"`

	// Timeout is the default wall-clock limit of a call. Zero or less
	// means no limit.
	Timeout time.Duration `conf:"timeout"`

	// FailureWait bounds how long the supervisor waits for the launch
	// failure channel to settle after the child exited.
	FailureWait time.Duration `conf:"failure_wait"`
}

var DefaultConfig = Config{
	PollInterval: 200 * time.Millisecond,
	Grace:        500 * time.Millisecond,
	Timeout:      0,
	FailureWait:  time.Second,
}

// withDefaults fills in zero durations from DefaultConfig. Timeout is
// left alone, zero is a valid setting there.
func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultConfig.PollInterval
	}
	if c.Grace <= 0 {
		c.Grace = DefaultConfig.Grace
	}
	if c.FailureWait <= 0 {
		c.FailureWait = DefaultConfig.FailureWait
	}
	return c
}
