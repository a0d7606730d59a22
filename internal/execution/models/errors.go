package models

import (
	"errors"
	"fmt"
	"syscall"
)

var (
	// ErrTimedOut is returned when the wall-clock limit of a call elapsed
	// and the child had to be stopped.
	ErrTimedOut = errors.New("timed out")

	// ErrCancelled is returned when the caller interrupted the call.
	ErrCancelled = errors.New("cancelled")

	// ErrWorkerDied is returned by isolated calls when the worker
	// terminated without producing a well-formed outcome.
	ErrWorkerDied = errors.New("worker died")

	// ErrSupervisorBusy is returned when a supervisor instance is asked to
	// run a call while another one is still in flight.
	ErrSupervisorBusy = errors.New("supervisor busy")
)

// LaunchError reports that a child never started executing the requested
// program or work. It is never retried.
type LaunchError struct {
	// Program is the program path or work name that failed to start
	Program string

	// Op is the launch step that failed, e.g. "exec", "open stdout"
	Op string

	// Code is the failure code reported by a worker over the failure
	// channel, zero for parent-side failures
	Code int

	Err error
}

func (e *LaunchError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("launch %s: %s (code %d): %v", e.Program, e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("launch %s: %s: %v", e.Program, e.Op, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// ResourceError reports that the host ran out of processes, memory or
// descriptors while preparing or starting a child.
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource exhausted: %s: %v", e.Op, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// SignalError reports that the child terminated because of a signal that
// the supervisor did not send as part of a timeout or cancellation.
type SignalError struct {
	Signal int
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("terminated by signal: %s", syscall.Signal(e.Signal))
}

// IsLaunchError reports whether err contains a *LaunchError.
func IsLaunchError(err error) bool {
	var launchErr *LaunchError
	return errors.As(err, &launchErr)
}

// IsResourceError reports whether err contains a *ResourceError.
func IsResourceError(err error) bool {
	var resErr *ResourceError
	return errors.As(err, &resErr)
}
