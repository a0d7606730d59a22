// Package stdio resolves what the caller wants done with a child's
// standard streams into the descriptors that are handed to the launcher.
package stdio

import (
	"errors"
	"fmt"
	"io"
)

var (
	ErrPipeNotAllowed = errors.New("pipe directive not allowed")
	ErrNoSink         = errors.New("pipe directive without sink")
	ErrNoPath         = errors.New("file directive without path")
)

// Stream identifies one of the three standard streams.
type Stream int

const (
	Stdin Stream = iota
	Stdout
	Stderr
)

func (s Stream) String() string {
	switch s {
	case Stdin:
		return "stdin"
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	default:
		return fmt.Sprintf("fd%d", int(s))
	}
}

// Kind is the action requested for a stream.
type Kind int

const (
	// KindDiscard closes the stream in the child. It is the zero value,
	// so an unset directive discards.
	KindDiscard Kind = iota

	// KindInherit passes the parent's own stream through.
	KindInherit

	// KindFile connects the stream to a file. Output streams create or
	// truncate the file, stdin opens it read-only.
	KindFile

	// KindPipe connects the stream to a pipe drained into a sink.
	KindPipe
)

func (k Kind) String() string {
	switch k {
	case KindDiscard:
		return "discard"
	case KindInherit:
		return "inherit"
	case KindFile:
		return "file"
	case KindPipe:
		return "pipe"
	default:
		return "unknown"
	}
}

// Directive is the caller's intent for a single stream.
type Directive struct {
	Kind Kind
	Path string
	Sink io.Writer
}

func Discard() Directive {
	return Directive{Kind: KindDiscard}
}

func Inherit() Directive {
	return Directive{Kind: KindInherit}
}

func File(path string) Directive {
	return Directive{Kind: KindFile, Path: path}
}

func Pipe(sink io.Writer) Directive {
	return Directive{Kind: KindPipe, Sink: sink}
}

// Mode tells whether the caller waits for the child or lets it run in
// the background.
type Mode int

const (
	ModeBlocking Mode = iota
	ModeBackground
)

// Plan holds one directive per standard stream.
type Plan struct {
	Stdin  Directive
	Stdout Directive
	Stderr Directive
}

// Directive returns the directive for stream s.
func (p Plan) Directive(s Stream) Directive {
	switch s {
	case Stdin:
		return p.Stdin
	case Stdout:
		return p.Stdout
	default:
		return p.Stderr
	}
}

// Validate checks the plan without touching the file system. Pipes are
// only legal on output streams of blocking calls, since nobody would
// drain them otherwise.
func (p Plan) Validate(mode Mode) error {
	for _, s := range []Stream{Stdin, Stdout, Stderr} {
		d := p.Directive(s)

		switch d.Kind {
		case KindPipe:
			if s == Stdin || mode == ModeBackground {
				return fmt.Errorf("%s: %w", s, ErrPipeNotAllowed)
			}
			if d.Sink == nil {
				return fmt.Errorf("%s: %w", s, ErrNoSink)
			}
		case KindFile:
			if d.Path == "" {
				return fmt.Errorf("%s: %w", s, ErrNoPath)
			}
		case KindDiscard, KindInherit:
		default:
			return fmt.Errorf("%s: unknown directive %d", s, d.Kind)
		}
	}

	return nil
}
