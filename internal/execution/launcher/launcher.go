// Package launcher creates child processes in their own process group,
// applies a stdio plan to them and reports launch failures over a channel
// that is separate from the child's own output.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/lambda-feedback/sysproc/internal/execution/models"
	"github.com/lambda-feedback/sysproc/internal/execution/stdio"
	"go.uber.org/zap"
)

// Spec describes a prepared command. It is not modified by Launch.
type Spec struct {
	// Path is the program to execute. Names without a separator are
	// looked up in PATH.
	Path string

	// Args is the full argument vector, including argv[0]. If empty,
	// the child receives Path as its only argument.
	Args []string

	// Env is the child's environment. Nil means the parent's environment.
	Env []string

	// Dir is the working directory of the child. Empty means the
	// parent's working directory.
	Dir string

	// Stdio is the plan for the three standard streams.
	Stdio stdio.Plan

	// ExtraFiles are passed to the child as descriptors 3 and up. They
	// are donated: Launch closes the parent's copies whether it succeeds
	// or not.
	ExtraFiles []*os.File

	// FailureChannel requests a private pipe that the child can use to
	// report a setup failure after it started. The write end is passed
	// as the descriptor following ExtraFiles.
	FailureChannel bool

	// SysProcAttr holds platform specific attributes. Process group
	// placement is always enforced on top of it.
	SysProcAttr *syscall.SysProcAttr
}

func (s *Spec) argv() []string {
	if len(s.Args) == 0 {
		return []string{s.Path}
	}
	return s.Args
}

// FailureFd returns the descriptor number the child sees the failure
// channel under.
func (s *Spec) FailureFd() int {
	return 3 + len(s.ExtraFiles)
}

// Signal is a platform neutral termination request.
type Signal int

const (
	Interrupt Signal = iota + 1
	Terminate
	Kill
)

func (s Signal) String() string {
	switch s {
	case Interrupt:
		return "interrupt"
	case Terminate:
		return "terminate"
	case Kill:
		return "kill"
	default:
		return "unknown"
	}
}

// ExitStatus is how a reaped child ended.
type ExitStatus struct {
	// Code is the exit code, -1 if the child was terminated by a signal
	Code int

	// Signal is the terminating signal, zero on a normal exit
	Signal int
}

func (s ExitStatus) Signaled() bool {
	return s.Signal != 0
}

// process hides the platform differences between unix process groups and
// windows job objects.
type process interface {
	Pid() int

	// Signal delivers sig to the child only.
	Signal(sig Signal) error

	// KillGroup forcefully kills the child and all its descendants.
	KillGroup() error

	// TryWait reaps the child if it exited, without blocking.
	TryWait() (ExitStatus, bool, error)

	// Peek reports whether the child exited but leaves it unreaped. ok
	// is false where the platform cannot do that.
	Peek(block bool) (exited bool, ok bool, err error)

	// Wait blocks until the child exited and reaps it.
	Wait() (ExitStatus, error)

	// WakeFd returns a descriptor that becomes readable when the child
	// exits, or -1.
	WakeFd() int

	// Release frees the OS resources held for the child.
	Release() error
}

// Launch starts the command described by spec.
//
// On success the returned handle owns the child and the parent ends of
// its pipes. On failure nothing opened by Launch stays open and the error
// is a *models.LaunchError or a *models.ResourceError.
func Launch(
	ctx context.Context,
	spec Spec,
	mode stdio.Mode,
	log *zap.Logger,
) (h *Handle, err error) {
	if log == nil {
		log = zap.NewNop()
	}

	defer closeFiles(spec.ExtraFiles)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("launch %s: %w", spec.Path, models.ErrCancelled)
	}

	path, err := exec.LookPath(spec.Path)
	if err != nil {
		return nil, &models.LaunchError{Program: spec.Path, Op: "lookup", Err: err}
	}

	res, err := stdio.Resolve(spec.Stdio, mode)
	if err != nil {
		var launchErr *models.LaunchError
		if errors.As(err, &launchErr) && launchErr.Program == "" {
			launchErr.Program = spec.Path
		}
		return nil, err
	}

	defer func() {
		if err != nil {
			res.Close()
		}
	}()

	var failureRead, failureWrite *os.File
	extra := spec.ExtraFiles

	if spec.FailureChannel {
		failureRead, failureWrite, err = stdio.NewPipe()
		if err != nil {
			return nil, &models.ResourceError{Op: "failure channel", Err: err}
		}
		extra = append(extra[:len(extra):len(extra)], failureWrite)
	}

	proc, err := start(path, &spec, res, extra)

	// the child holds its own copies now
	res.CloseChildEnds()
	if failureWrite != nil {
		failureWrite.Close()
	}

	if err != nil {
		if failureRead != nil {
			failureRead.Close()
		}
		return nil, err
	}

	h = newHandle(spec.Path, proc, res.Pipes, log)

	if failureRead != nil {
		h.failure = watchFailure(failureRead)
	}

	for _, p := range res.Pipes {
		if err = stdio.SetNonblock(p.Fd); err != nil {
			h.Reclaim()
			return nil, &models.ResourceError{Op: "set nonblock", Err: err}
		}
	}

	h.log.Debug("launched",
		zap.String("path", path),
		zap.Strings("args", spec.argv()),
	)

	return h, nil
}

// classify maps an error of the process creation primitive to the error
// taxonomy. Exhaustion of processes, memory or descriptors is a resource
// error, everything else means the program could not be started.
func classify(program string, err error) error {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EAGAIN, syscall.ENOMEM, syscall.EMFILE, syscall.ENFILE:
			return &models.ResourceError{Op: "start " + program, Err: err}
		}
	}

	return &models.LaunchError{Program: program, Op: "exec", Err: err}
}

func closeFiles(files []*os.File) {
	for _, f := range files {
		if f != nil {
			f.Close()
		}
	}
}
