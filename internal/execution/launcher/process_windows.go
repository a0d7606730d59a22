package launcher

import (
	"errors"
	"os"

	"golang.org/x/sys/windows"
)

type windowsProcess struct {
	pid    int
	proc   *os.Process
	handle windows.Handle
	job    windows.Handle
}

func (p *windowsProcess) Pid() int {
	return p.pid
}

func (p *windowsProcess) WakeFd() int {
	return -1
}

// Signal maps the interrupt rung to a console break event. Windows has no
// polite terminate, so the other rungs terminate the child directly.
func (p *windowsProcess) Signal(sig Signal) error {
	if sig == Interrupt {
		return windows.GenerateConsoleCtrlEvent(windows.CTRL_BREAK_EVENT, uint32(p.pid))
	}

	return windows.TerminateProcess(p.handle, 1)
}

func (p *windowsProcess) KillGroup() error {
	return windows.TerminateJobObject(p.job, 1)
}

func (p *windowsProcess) TryWait() (ExitStatus, bool, error) {
	return p.wait(0)
}

func (p *windowsProcess) Peek(bool) (bool, bool, error) {
	return false, false, nil
}

func (p *windowsProcess) Wait() (ExitStatus, error) {
	status, _, err := p.wait(windows.INFINITE)
	return status, err
}

func (p *windowsProcess) wait(timeout uint32) (ExitStatus, bool, error) {
	ev, err := windows.WaitForSingleObject(p.handle, timeout)
	if err != nil {
		return ExitStatus{}, false, os.NewSyscallError("WaitForSingleObject", err)
	}
	if ev != windows.WAIT_OBJECT_0 {
		return ExitStatus{}, false, nil
	}

	var code uint32
	if err := windows.GetExitCodeProcess(p.handle, &code); err != nil {
		return ExitStatus{}, false, os.NewSyscallError("GetExitCodeProcess", err)
	}

	return ExitStatus{Code: int(code)}, true, nil
}

func (p *windowsProcess) Release() error {
	return errors.Join(
		windows.CloseHandle(p.handle),
		windows.CloseHandle(p.job),
		p.proc.Release(),
	)
}
