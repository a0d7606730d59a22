package shell

import (
	"errors"
	"fmt"
)

// ExitError carries the exit code the process should end with. Err, if
// set, is the cause shown to the user.
type ExitError struct {
	ExitCode int
	Err      error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("exit status %d: %v", e.ExitCode, e.Err)
	}
	return fmt.Sprintf("exit status %d", e.ExitCode)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(exitCode int) *ExitError {
	return &ExitError{ExitCode: exitCode}
}

func WrapExitError(exitCode int, err error) *ExitError {
	return &ExitError{ExitCode: exitCode, Err: err}
}

func IsExitError(err error) bool {
	if err == nil {
		return false
	}

	var exitErr *ExitError
	return errors.As(err, &exitErr)
}

// ExitCode returns the code err asks for: 0 for nil, the carried code
// for an ExitError and 1 for anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode
	}

	return 1
}
