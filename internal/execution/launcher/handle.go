package launcher

import (
	"errors"
	"sync"
	"syscall"
	"time"

	"github.com/lambda-feedback/sysproc/internal/execution/models"
	"github.com/lambda-feedback/sysproc/internal/execution/stdio"
	"go.uber.org/zap"
)

// Handle is the parent's view of a launched child. It is owned by one
// supervisor; only the reap state is safe for concurrent use, so that a
// background reaper and a caller killing the group can share it.
type Handle struct {
	program string
	started time.Time
	proc    process
	pipes   []stdio.PipeEnd
	failure *failureWatcher

	mu     sync.Mutex
	status *ExitStatus

	closeOnce sync.Once

	log *zap.Logger
}

func newHandle(program string, proc process, pipes []stdio.PipeEnd, log *zap.Logger) *Handle {
	return &Handle{
		program: program,
		started: time.Now(),
		proc:    proc,
		pipes:   pipes,
		log:     log.Named("launcher").With(zap.Int("pid", proc.Pid())),
	}
}

func (h *Handle) Pid() int {
	return h.proc.Pid()
}

func (h *Handle) Program() string {
	return h.program
}

func (h *Handle) Started() time.Time {
	return h.started
}

// Pipes returns the parent read ends of captured streams.
func (h *Handle) Pipes() []stdio.PipeEnd {
	return h.pipes
}

// WakeFd returns a descriptor that becomes readable once the child
// exits, or -1 if the platform has none.
func (h *Handle) WakeFd() int {
	return h.proc.WakeFd()
}

// Signal delivers sig to the child. Delivery failures are returned but a
// child that is already gone is not an error.
func (h *Handle) Signal(sig Signal) error {
	if h.Exited() {
		return nil
	}

	err := h.proc.Signal(sig)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}

	return err
}

// KillGroup kills the child and every process in its group. Once the
// child was reaped the group id is free for reuse, so it does nothing.
func (h *Handle) KillGroup() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.status != nil {
		return nil
	}

	return h.killGroupLocked()
}

func (h *Handle) killGroupLocked() error {
	err := h.proc.KillGroup()
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}

	return err
}

// Exited reports whether the child has been reaped.
func (h *Handle) Exited() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.status != nil
}

// Done reports whether the child exited, without blocking. Where the
// platform allows, the child is left unreaped: it keeps its group id
// reserved, so KillGroup can still reach its descendants. Elsewhere the
// child is reaped and its group killed in one step.
func (h *Handle) Done() (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.status != nil {
		return true, nil
	}

	if exited, ok, err := h.proc.Peek(false); ok {
		return exited, err
	}

	status, exited, err := h.proc.TryWait()
	if err != nil || !exited {
		return false, err
	}

	if err := h.killGroupLocked(); err != nil {
		h.log.Debug("kill group failed", zap.Error(err))
	}

	h.status = &status

	return true, nil
}

// TryWait reaps the child if it exited. It never blocks.
func (h *Handle) TryWait() (ExitStatus, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.status != nil {
		return *h.status, true, nil
	}

	status, ok, err := h.proc.TryWait()
	if err != nil || !ok {
		return status, ok, err
	}

	h.status = &status

	return status, true, nil
}

// Wait blocks until the child exited and reaps it.
func (h *Handle) Wait() (ExitStatus, error) {
	if status, ok, err := h.TryWait(); ok || err != nil {
		return status, err
	}

	// wait for the exit outside the lock, reap under it, so a
	// concurrent KillGroup never signals a released group id
	if _, ok, err := h.proc.Peek(true); ok {
		h.mu.Lock()
		defer h.mu.Unlock()

		if h.status != nil {
			return *h.status, nil
		}
		if err != nil {
			return ExitStatus{}, err
		}

		status, err := h.proc.Wait()
		if err != nil {
			return status, err
		}

		h.status = &status

		return status, nil
	}

	status, err := h.proc.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()

	// a concurrent TryWait may have won the reap
	if h.status != nil {
		return *h.status, nil
	}

	if err != nil {
		return status, err
	}

	h.status = &status

	return status, nil
}

// LaunchFailure returns the report the child wrote to its failure
// channel, waiting at most wait for the channel to settle. It returns nil
// if no failure channel was requested or the child reported nothing.
func (h *Handle) LaunchFailure(wait time.Duration) *models.LaunchError {
	if h.failure == nil {
		return nil
	}

	report, err := h.failure.Result(wait)
	if err != nil {
		h.log.Debug("failure channel unreadable", zap.Error(err))
		return nil
	}

	if report == nil {
		return nil
	}

	return &models.LaunchError{
		Program: h.program,
		Op:      "setup",
		Code:    int(report.Code),
		Err:     errors.New(report.Message),
	}
}

// Reclaim guarantees that neither the child nor any process of its group
// survives, reaps the child and releases all descriptors. It is safe to
// call on every exit path, more than once. The group is only killed while
// the child is unreaped.
func (h *Handle) Reclaim() {
	if err := h.KillGroup(); err != nil {
		h.log.Debug("kill group failed", zap.Error(err))
	}

	if _, err := h.Wait(); err != nil {
		h.log.Debug("reap failed", zap.Error(err))
	}

	h.Close()
}

// Close releases the parent's descriptors. It does not touch the child.
func (h *Handle) Close() {
	h.closeOnce.Do(func() {
		for _, p := range h.pipes {
			p.File.Close()
		}

		if h.failure != nil {
			h.failure.Close()
		}

		if err := h.proc.Release(); err != nil {
			h.log.Debug("release failed", zap.Error(err))
		}
	})
}
