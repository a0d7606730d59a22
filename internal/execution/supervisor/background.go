package supervisor

import (
	"context"
	"time"

	"github.com/lambda-feedback/sysproc/internal/execution/launcher"
	"github.com/lambda-feedback/sysproc/internal/execution/stdio"
	"go.uber.org/zap"
)

// Background is a child started without waiting for it. A reaper
// goroutine collects its exit status, so it never lingers as a zombie.
type Background struct {
	handle *launcher.Handle
	done   chan struct{}
	status launcher.ExitStatus
	err    error
	log    *zap.Logger
}

// Spawn launches the command in its own process group and returns as soon
// as it runs. Pipe directives are rejected since nobody drains them.
func (s *ProcessSupervisor) Spawn(ctx context.Context, spec launcher.Spec) (*Background, error) {
	h, err := launcher.Launch(ctx, spec, stdio.ModeBackground, s.log)
	if err != nil {
		s.metrics.LaunchFailed("background")
		return nil, err
	}

	b := &Background{
		handle: h,
		done:   make(chan struct{}),
		log:    s.log.With(zap.Int("pid", h.Pid())),
	}

	go b.reap()

	return b, nil
}

func (b *Background) reap() {
	defer close(b.done)
	defer b.handle.Close()

	b.status, b.err = b.handle.Wait()

	b.log.Debug("background child exited",
		zap.Int("exit_code", b.status.Code),
		zap.Int("signal", b.status.Signal),
		zap.Error(b.err),
	)
}

func (b *Background) Pid() int {
	return b.handle.Pid()
}

// Done is closed once the child has been reaped.
func (b *Background) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until the child was reaped or ctx is done.
func (b *Background) Wait(ctx context.Context) (launcher.ExitStatus, error) {
	select {
	case <-b.done:
		return b.status, b.err
	case <-ctx.Done():
		return launcher.ExitStatus{}, ctx.Err()
	}
}

// Kill kills the child's whole process group. It is a no-op once the
// child was reaped.
func (b *Background) Kill() error {
	select {
	case <-b.done:
		return nil
	default:
	}

	return b.handle.KillGroup()
}

// Stop kills the group and waits up to timeout for the reaper.
func (b *Background) Stop(timeout time.Duration) error {
	if err := b.Kill(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, err := b.Wait(ctx)
	return err
}
