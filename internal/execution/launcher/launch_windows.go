package launcher

import (
	"errors"
	"os"
	"syscall"

	"github.com/lambda-feedback/sysproc/internal/execution/models"
	"github.com/lambda-feedback/sysproc/internal/execution/stdio"
	"golang.org/x/sys/windows"
)

const processAccess = windows.PROCESS_QUERY_LIMITED_INFORMATION |
	windows.SYNCHRONIZE |
	windows.PROCESS_TERMINATE |
	windows.PROCESS_SET_QUOTA

// start creates the child in a new console process group and assigns it
// to a fresh job object, which stands in for the unix process group.
func start(path string, spec *Spec, res *stdio.Resolved, extra []*os.File) (process, error) {
	if len(extra) > 0 {
		return nil, &models.LaunchError{
			Program: spec.Path,
			Op:      "extra files",
			Err:     errors.New("additional descriptors are not supported on windows"),
		}
	}

	sys := &syscall.SysProcAttr{}
	if spec.SysProcAttr != nil {
		attr := *spec.SysProcAttr
		sys = &attr
	}
	sys.CreationFlags |= windows.CREATE_NEW_PROCESS_GROUP

	env := spec.Env
	if env == nil {
		env = os.Environ()
	}

	job, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return nil, &models.ResourceError{Op: "create job object", Err: err}
	}

	proc, err := os.StartProcess(path, spec.argv(), &os.ProcAttr{
		Dir:   spec.Dir,
		Env:   env,
		Files: []*os.File{res.Child[0], res.Child[1], res.Child[2]},
		Sys:   sys,
	})
	if err != nil {
		windows.CloseHandle(job)
		return nil, classify(spec.Path, err)
	}

	handle, err := windows.OpenProcess(processAccess, false, uint32(proc.Pid))
	if err == nil {
		err = windows.AssignProcessToJobObject(job, handle)
	}
	if err != nil {
		proc.Kill()
		proc.Wait()
		if handle != 0 {
			windows.CloseHandle(handle)
		}
		windows.CloseHandle(job)
		return nil, &models.ResourceError{Op: "assign job object", Err: err}
	}

	return &windowsProcess{
		pid:    proc.Pid,
		proc:   proc,
		handle: handle,
		job:    job,
	}, nil
}
