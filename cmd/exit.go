package cmd

import (
	"errors"

	"github.com/lambda-feedback/sysproc/internal/execution/models"
	"github.com/lambda-feedback/sysproc/internal/shell"
)

// Exit codes for outcomes that have no exit status of their own, as
// used by timeout(1) and shells.
const (
	exitTimedOut   = 124
	exitNotRunning = 126
	exitLaunch     = 127
	exitSignalBase = 128
	exitCancelled  = 130
)

// exitError turns the result of a run into the error that ends the
// process with the matching exit code. A child that exited with zero
// yields nil.
func exitError(res *models.Result, err error) error {
	if res == nil {
		switch {
		case models.IsLaunchError(err):
			return shell.WrapExitError(exitLaunch, err)
		case models.IsResourceError(err):
			return shell.WrapExitError(exitNotRunning, err)
		}
		return err
	}

	switch res.State {
	case models.StateSucceeded:
		if res.ExitCode == 0 {
			return nil
		}
		return shell.NewExitError(res.ExitCode)
	case models.StateTimedOut:
		return shell.WrapExitError(exitTimedOut, models.ErrTimedOut)
	case models.StateCancelled:
		return shell.WrapExitError(exitCancelled, models.ErrCancelled)
	}

	// failed
	var sigErr *models.SignalError
	if errors.As(err, &sigErr) {
		return shell.NewExitError(exitSignalBase + sigErr.Signal)
	}

	if res.Reason == models.ReasonLaunch || models.IsLaunchError(err) {
		return shell.WrapExitError(exitLaunch, err)
	}

	if models.IsResourceError(err) {
		return shell.WrapExitError(exitNotRunning, err)
	}

	return shell.WrapExitError(1, err)
}
