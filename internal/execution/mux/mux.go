// Package mux drains the captured output streams of a child into their
// sinks without blocking the supervisor for longer than a bounded wait.
package mux

import (
	"io"

	"github.com/lambda-feedback/sysproc/internal/execution/stdio"
	"go.uber.org/zap"
)

const (
	// chunkSize is the size of a single read from a stream
	chunkSize = 64 << 10

	// readsPerPass caps the reads per stream and Drain call, so a child
	// that writes continuously cannot keep the supervisor from ticking
	readsPerPass = 16

	// readsPerFlush caps the final pass. It only matters if a descendant
	// escaped the process group and keeps writing.
	readsPerFlush = 1 << 14
)

// SinkFunc adapts a callback to an io.Writer sink. The chunk is only
// valid for the duration of the call.
type SinkFunc func(chunk []byte)

func (f SinkFunc) Write(p []byte) (int, error) {
	f(p)
	return len(p), nil
}

type stream struct {
	name string
	fd   int
	pipe stdio.PipeEnd
	sink io.Writer
	open bool

	// failed is set after the sink returned an error; the stream is
	// still drained so the child does not block on a full pipe
	failed bool

	delivered int64
}

func newStreams(pipes []stdio.PipeEnd) []*stream {
	streams := make([]*stream, 0, len(pipes))
	for _, p := range pipes {
		streams = append(streams, &stream{
			name: p.Stream.String(),
			fd:   p.Fd,
			pipe: p,
			sink: p.Sink,
			open: true,
		})
	}
	return streams
}

// deliver hands a chunk to the stream's sink. Sink errors are logged once
// and do not stop the draining.
func (m *Mux) deliver(s *stream, chunk []byte) {
	if s.failed || len(chunk) == 0 {
		return
	}

	if _, err := s.sink.Write(chunk); err != nil {
		s.failed = true
		if m.err == nil {
			m.err = err
		}
		m.log.Warn("sink failed, discarding further output",
			zap.String("stream", s.name),
			zap.Error(err),
		)
		return
	}

	s.delivered += int64(len(chunk))
}

// Open returns the number of streams that have not reached end-of-stream.
func (m *Mux) Open() int {
	n := 0
	for _, s := range m.streams {
		if s.open {
			n++
		}
	}
	return n
}

// Delivered returns the number of bytes handed to the sink of stream.
func (m *Mux) Delivered(stream stdio.Stream) int64 {
	var n int64
	for _, s := range m.streams {
		if s.pipe.Stream == stream {
			n += s.delivered
		}
	}
	return n
}

// Err returns the first error a sink returned.
func (m *Mux) Err() error {
	return m.err
}
