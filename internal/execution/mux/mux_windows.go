package mux

import (
	"sync"
	"time"

	"github.com/lambda-feedback/sysproc/internal/execution/stdio"
	"go.uber.org/zap"
)

// flushTimeout bounds the final pass. Pipes on windows only report
// end-of-stream through a blocking read.
const flushTimeout = 2 * time.Second

type chunk struct {
	s    *stream
	data []byte
	eof  bool
}

// Mux drains pipes through one reader goroutine per stream, since windows
// pipes have no readiness polling. The readers only move bytes; all
// delivery happens on the supervisor's goroutine.
type Mux struct {
	streams []*stream
	chunks  chan chunk
	done    chan struct{}
	once    sync.Once
	err     error
	log     *zap.Logger
}

func New(pipes []stdio.PipeEnd, log *zap.Logger) *Mux {
	m := &Mux{
		streams: newStreams(pipes),
		chunks:  make(chan chunk),
		done:    make(chan struct{}),
		log:     log.Named("mux"),
	}

	for _, s := range m.streams {
		go m.reader(s)
	}

	return m
}

func (m *Mux) reader(s *stream) {
	for {
		buf := make([]byte, chunkSize)
		n, err := s.pipe.File.Read(buf)
		if n > 0 {
			select {
			case m.chunks <- chunk{s: s, data: buf[:n]}:
			case <-m.done:
				return
			}
		}
		if err != nil {
			select {
			case m.chunks <- chunk{s: s, eof: true}:
			case <-m.done:
			}
			return
		}
	}
}

// Watch is a no-op on windows.
func (m *Mux) Watch(int) {}

// Drain delivers the chunks that arrive within wait.
func (m *Mux) Drain(wait time.Duration) error {
	if m.Open() == 0 {
		time.Sleep(wait)
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case c := <-m.chunks:
		m.handle(c)
	case <-timer.C:
		return nil
	}

	for i := 0; i < readsPerPass*len(m.streams); i++ {
		select {
		case c := <-m.chunks:
			m.handle(c)
		default:
			return nil
		}
	}

	return nil
}

// Flush collects the remaining output until every reader saw
// end-of-stream or the flush timeout elapsed.
func (m *Mux) Flush() error {
	timer := time.NewTimer(flushTimeout)
	defer timer.Stop()

	for m.Open() > 0 {
		select {
		case c := <-m.chunks:
			m.handle(c)
		case <-timer.C:
			m.log.Warn("flush timed out", zap.Int("open", m.Open()))
			return nil
		}
	}

	return nil
}

// Close releases the reader goroutines.
func (m *Mux) Close() {
	m.once.Do(func() {
		close(m.done)
	})
}

func (m *Mux) handle(c chunk) {
	if c.eof {
		c.s.open = false
		return
	}
	m.deliver(c.s, c.data)
}
