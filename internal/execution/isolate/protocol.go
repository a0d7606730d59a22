package isolate

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/lambda-feedback/sysproc/internal/execution/models"
)

// Result channel: a uint32 status marker followed by one frame. Input
// channel: one frame. A frame is a uint64 length followed by the payload.
const (
	markerOk  uint32 = 0
	markerErr uint32 = 1
)

var (
	// ErrNoMarker means the channel closed before the worker wrote
	// anything.
	ErrNoMarker = errors.New("channel closed without status marker")

	ErrUnknownMarker   = errors.New("unknown status marker")
	ErrTruncated       = errors.New("truncated frame")
	ErrPayloadTooLarge = errors.New("payload too large")
)

func writeFrame(w io.Writer, payload []byte) error {
	var header [8]byte
	binary.BigEndian.PutUint64(header[:], uint64(len(payload)))

	if _, err := w.Write(header[:]); err != nil {
		return err
	}

	_, err := w.Write(payload)
	return err
}

// readFrame reads one frame. The length is checked against max before
// anything is allocated.
func readFrame(r io.Reader, max int64) ([]byte, error) {
	var header [8]byte

	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: length: %v", ErrTruncated, err)
	}

	size := binary.BigEndian.Uint64(header[:])
	if max >= 0 && size > uint64(max) {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrTruncated, err)
	}

	return payload, nil
}

// writeOutcome writes the marker and the payload of an Ok or Err outcome.
func writeOutcome(w io.Writer, outcome models.Outcome) error {
	var marker [4]byte

	switch outcome.Kind {
	case models.OutcomeOk:
		binary.BigEndian.PutUint32(marker[:], markerOk)
	case models.OutcomeErr:
		binary.BigEndian.PutUint32(marker[:], markerErr)
	default:
		return fmt.Errorf("cannot write outcome %s", outcome.Kind)
	}

	if _, err := w.Write(marker[:]); err != nil {
		return err
	}

	return writeFrame(w, outcome.Payload)
}

// readOutcome reads the marker first and only then the payload. Any error
// means the worker did not produce a well-formed outcome.
func readOutcome(r io.Reader, max int64) (models.Outcome, error) {
	var marker [4]byte

	n, err := io.ReadFull(r, marker[:])
	if err != nil {
		if n == 0 {
			return models.WorkerDied(), ErrNoMarker
		}
		return models.WorkerDied(), fmt.Errorf("%w: marker: %v", ErrTruncated, err)
	}

	var kind models.OutcomeKind
	switch binary.BigEndian.Uint32(marker[:]) {
	case markerOk:
		kind = models.OutcomeOk
	case markerErr:
		kind = models.OutcomeErr
	default:
		return models.WorkerDied(), ErrUnknownMarker
	}

	payload, err := readFrame(r, max)
	if err != nil {
		return models.WorkerDied(), err
	}

	return models.Outcome{Kind: kind, Payload: payload}, nil
}
