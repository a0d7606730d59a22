package launcher

import (
	"os"

	"golang.org/x/sys/unix"
)

// openWakeFd opens a pidfd for the child. Kernels without pidfd support
// fall back to tick based exit checks.
func openWakeFd(pid int) int {
	fd, err := unix.PidfdOpen(pid, 0)
	if err != nil {
		return -1
	}

	return fd
}

// peekExit waits for the child to exit without reaping it, so its pid
// keeps reserving the process group id.
func peekExit(pid int, block bool) (bool, bool, error) {
	options := unix.WEXITED | unix.WNOWAIT
	if !block {
		options |= unix.WNOHANG
	}

	for {
		var info unix.Siginfo

		err := unix.Waitid(unix.P_PID, pid, &info, options, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, true, os.NewSyscallError("waitid", err)
		}

		// WNOHANG leaves info zeroed if nothing changed
		return info.Signo != 0, true, nil
	}
}
