//go:build unix

package launcher

import (
	"os"
	"runtime"
	"strconv"
	"sync"
	"syscall"

	"github.com/lambda-feedback/sysproc/internal/execution/stdio"
	"golang.org/x/sys/unix"
)

// closedFd asks ForkExec to close the descriptor in the child.
const closedFd = ^uintptr(0)

// start forks and execs the program. Errors of the exec step travel back
// over the runtime's close-on-exec status pipe, so a missing or
// non-executable program is reported here and not as an exit code.
func start(path string, spec *Spec, res *stdio.Resolved, extra []*os.File) (process, error) {
	sealInheritedDescriptors()

	files := make([]uintptr, 0, 3+len(extra))
	for _, f := range res.Child {
		if f == nil {
			files = append(files, closedFd)
			continue
		}
		files = append(files, f.Fd())
	}
	for _, f := range extra {
		files = append(files, f.Fd())
	}

	sys := &syscall.SysProcAttr{}
	if spec.SysProcAttr != nil {
		attr := *spec.SysProcAttr
		sys = &attr
	}
	sys.Setsid = false
	sys.Setpgid = true
	sys.Pgid = 0

	env := spec.Env
	if env == nil {
		env = os.Environ()
	}

	pid, err := syscall.ForkExec(path, spec.argv(), &syscall.ProcAttr{
		Dir:   spec.Dir,
		Env:   env,
		Files: files,
		Sys:   sys,
	})

	runtime.KeepAlive(res)
	runtime.KeepAlive(extra)

	if err != nil {
		return nil, classify(spec.Path, err)
	}

	return &unixProcess{pid: pid, wakeFd: openWakeFd(pid)}, nil
}

var sealOnce sync.Once

// sealInheritedDescriptors marks every descriptor above stderr that the
// host process holds as close-on-exec, so children only receive the
// descriptors they are explicitly given.
func sealInheritedDescriptors() {
	sealOnce.Do(func() {
		dir := "/dev/fd"
		if runtime.GOOS == "linux" {
			dir = "/proc/self/fd"
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}

		for _, entry := range entries {
			fd, err := strconv.Atoi(entry.Name())
			if err != nil || fd < 3 {
				continue
			}
			unix.CloseOnExec(fd)
		}
	})
}
