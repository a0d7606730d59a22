//go:build unix

package stdio

import (
	"os"

	"golang.org/x/sys/unix"
)

// newPipe returns a close-on-exec pipe. The ends are wrapped without
// registering them with the runtime poller; the multiplexer polls the raw
// read end itself.
func newPipe() (*os.File, *os.File, error) {
	var fds [2]int
	if err := pipe2(fds[:]); err != nil {
		return nil, nil, os.NewSyscallError("pipe", err)
	}

	return os.NewFile(uintptr(fds[0]), "|0"), os.NewFile(uintptr(fds[1]), "|1"), nil
}

// NewPipe exposes the pipe primitive to the launcher and the isolated
// call executor, which need private channels besides the stdio plan.
func NewPipe() (*os.File, *os.File, error) {
	return newPipe()
}

// SetNonblock switches the parent read end of a pipe to non-blocking
// reads.
func SetNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}
