package launcher

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// maxFailureMessage bounds the message of a failure report.
const maxFailureMessage = 64 << 10

var ErrFailureTruncated = errors.New("truncated failure report")

// FailureReport is the single message a child may write to its failure
// channel: a fixed-width code followed by a length-prefixed message.
type FailureReport struct {
	Code    int32
	Message string
}

// WriteFailure encodes a report onto w in one write.
func WriteFailure(w io.Writer, code int32, message string) error {
	if len(message) > maxFailureMessage {
		message = message[:maxFailureMessage]
	}

	buf := make([]byte, 8+len(message))
	binary.BigEndian.PutUint32(buf[0:4], uint32(code))
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(message)))
	copy(buf[8:], message)

	_, err := w.Write(buf)
	return err
}

// ReadFailure decodes a report from r. A channel closed without a single
// byte means the child reported no failure, and yields nil.
func ReadFailure(r io.Reader) (*FailureReport, error) {
	var header [8]byte

	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrFailureTruncated, err)
	}

	code := int32(binary.BigEndian.Uint32(header[0:4]))
	size := binary.BigEndian.Uint32(header[4:8])

	if size > maxFailureMessage {
		return nil, fmt.Errorf("%w: message of %d bytes", ErrFailureTruncated, size)
	}

	msg := make([]byte, size)
	if _, err := io.ReadFull(r, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailureTruncated, err)
	}

	return &FailureReport{Code: code, Message: string(msg)}, nil
}

// failureWatcher reads the failure channel in the background. The read
// completes once every copy of the write end is closed, which happens at
// the latest when the child exits.
type failureWatcher struct {
	file *os.File
	done chan struct{}

	report *FailureReport
	err    error

	closeOnce sync.Once
}

func watchFailure(f *os.File) *failureWatcher {
	w := &failureWatcher{
		file: f,
		done: make(chan struct{}),
	}

	go func() {
		defer close(w.done)
		w.report, w.err = ReadFailure(f)
	}()

	return w
}

// Result waits up to wait for the channel to settle.
func (w *failureWatcher) Result(wait time.Duration) (*FailureReport, error) {
	select {
	case <-w.done:
		return w.report, w.err
	case <-time.After(wait):
		return nil, errors.New("failure channel still open")
	}
}

func (w *failureWatcher) Close() {
	w.closeOnce.Do(func() {
		w.file.Close()
	})
}
