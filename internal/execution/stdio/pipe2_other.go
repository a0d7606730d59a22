//go:build unix && !linux

package stdio

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// pipe2 falls back to pipe + fcntl where pipe2 is missing. The fork lock
// keeps a concurrent fork from inheriting the descriptors in between.
func pipe2(fds []int) error {
	syscall.ForkLock.RLock()
	defer syscall.ForkLock.RUnlock()

	if err := unix.Pipe(fds); err != nil {
		return err
	}
	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])

	return nil
}
