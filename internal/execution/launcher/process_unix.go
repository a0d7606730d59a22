//go:build unix

package launcher

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

type unixProcess struct {
	pid    int
	wakeFd int
}

func (p *unixProcess) Pid() int {
	return p.pid
}

func (p *unixProcess) WakeFd() int {
	return p.wakeFd
}

func (p *unixProcess) Signal(sig Signal) error {
	return unix.Kill(p.pid, unixSignal(sig))
}

// KillGroup sends SIGKILL to the process group the child leads.
func (p *unixProcess) KillGroup() error {
	// never signal init or our own group
	if p.pid <= 1 {
		return errors.New("refusing to kill process group")
	}

	return unix.Kill(-p.pid, unix.SIGKILL)
}

func (p *unixProcess) TryWait() (ExitStatus, bool, error) {
	return p.wait(unix.WNOHANG)
}

func (p *unixProcess) Peek(block bool) (bool, bool, error) {
	return peekExit(p.pid, block)
}

func (p *unixProcess) Wait() (ExitStatus, error) {
	status, _, err := p.wait(0)
	return status, err
}

func (p *unixProcess) wait(options int) (ExitStatus, bool, error) {
	for {
		var ws unix.WaitStatus

		wpid, err := unix.Wait4(p.pid, &ws, options, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return ExitStatus{}, false, os.NewSyscallError("wait4", err)
		}
		if wpid == 0 {
			return ExitStatus{}, false, nil
		}

		return exitStatus(ws), true, nil
	}
}

func (p *unixProcess) Release() error {
	if p.wakeFd < 0 {
		return nil
	}

	fd := p.wakeFd
	p.wakeFd = -1

	return unix.Close(fd)
}

func exitStatus(ws unix.WaitStatus) ExitStatus {
	if ws.Signaled() {
		return ExitStatus{Code: -1, Signal: int(ws.Signal())}
	}

	return ExitStatus{Code: ws.ExitStatus()}
}

func unixSignal(sig Signal) unix.Signal {
	switch sig {
	case Interrupt:
		return unix.SIGINT
	case Terminate:
		return unix.SIGTERM
	default:
		return unix.SIGKILL
	}
}
