package models_test

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/lambda-feedback/sysproc/internal/execution/models"
	"github.com/stretchr/testify/assert"
)

func TestLaunchError_Unwrap(t *testing.T) {
	err := fmt.Errorf("call: %w", &models.LaunchError{
		Program: "missing",
		Op:      "exec",
		Err:     syscall.ENOENT,
	})

	assert.True(t, models.IsLaunchError(err))
	assert.False(t, models.IsResourceError(err))
	assert.ErrorIs(t, err, syscall.ENOENT)
	assert.Contains(t, err.Error(), "launch missing: exec")
}

func TestLaunchError_WithCode(t *testing.T) {
	err := &models.LaunchError{Program: "work", Op: "setup", Code: 2, Err: errors.New("bad input")}
	assert.Equal(t, "launch work: setup (code 2): bad input", err.Error())
}

func TestResourceError_Unwrap(t *testing.T) {
	err := &models.ResourceError{Op: "pipe stdout", Err: syscall.EMFILE}

	assert.True(t, models.IsResourceError(err))
	assert.ErrorIs(t, err, syscall.EMFILE)
}

func TestSignalError(t *testing.T) {
	err := &models.SignalError{Signal: int(syscall.SIGKILL)}
	assert.Equal(t, "terminated by signal: killed", err.Error())
}
