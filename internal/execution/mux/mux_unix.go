//go:build unix

package mux

import (
	"os"
	"time"

	"github.com/lambda-feedback/sysproc/internal/execution/stdio"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Mux polls the non-blocking read ends of a child's pipes. It is driven
// by the supervisor loop and not safe for concurrent use.
type Mux struct {
	streams []*stream
	wake    []int
	buf     []byte
	fds     []unix.PollFd
	err     error
	log     *zap.Logger
}

func New(pipes []stdio.PipeEnd, log *zap.Logger) *Mux {
	return &Mux{
		streams: newStreams(pipes),
		buf:     make([]byte, chunkSize),
		log:     log.Named("mux"),
	}
}

// Watch adds a descriptor that ends the bounded wait of Drain when it
// becomes readable, e.g. a pidfd of the child.
func (m *Mux) Watch(fd int) {
	if fd >= 0 {
		m.wake = append(m.wake, fd)
	}
}

// Drain waits at most wait for output or a wake descriptor and delivers
// whatever is available. Closed streams are dropped from the poll set.
func (m *Mux) Drain(wait time.Duration) error {
	m.fds = m.fds[:0]

	open := make([]*stream, 0, len(m.streams))
	for _, s := range m.streams {
		if s.open {
			open = append(open, s)
			m.fds = append(m.fds, unix.PollFd{Fd: int32(s.fd), Events: unix.POLLIN})
		}
	}
	for _, fd := range m.wake {
		m.fds = append(m.fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
	}

	if len(m.fds) == 0 {
		time.Sleep(wait)
		return nil
	}

	n, err := unix.Poll(m.fds, int(wait/time.Millisecond))
	if err == unix.EINTR {
		return nil
	}
	if err != nil {
		return os.NewSyscallError("poll", err)
	}
	if n == 0 {
		return nil
	}

	for i, s := range open {
		if m.fds[i].Revents != 0 {
			m.read(s, readsPerPass)
		}
	}

	return nil
}

// Flush performs the final pass after the child exited: every stream is
// read until it would block or reaches end-of-stream.
func (m *Mux) Flush() error {
	for _, s := range m.streams {
		if s.open {
			m.read(s, readsPerFlush)
		}
	}
	return nil
}

// Close is a no-op; the pipe descriptors belong to the launcher handle.
func (m *Mux) Close() {}

func (m *Mux) read(s *stream, limit int) {
	for i := 0; i < limit; {
		n, err := unix.Read(s.fd, m.buf)

		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return
		case err != nil:
			// a broken or closed pipe is a normal end-of-stream
			m.log.Debug("stream closed",
				zap.String("stream", s.name),
				zap.Error(err),
			)
			s.open = false
			return
		case n == 0:
			s.open = false
			return
		}

		m.deliver(s, m.buf[:n])
		i++
	}
}
