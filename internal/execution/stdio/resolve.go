package stdio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/lambda-feedback/sysproc/internal/execution/models"
)

// FileMode is the permission used when an output redirect creates a file.
const FileMode os.FileMode = 0o600

// PipeEnd is the parent side of a captured output stream. Fd is the raw
// read end, owned by File.
type PipeEnd struct {
	Stream Stream
	File   *os.File
	Fd     int
	Sink   io.Writer
}

// Resolved holds the concrete descriptors of a plan. Child is indexed by
// stream; a nil entry means the stream is closed in the child.
type Resolved struct {
	Child [3]*os.File
	Pipes []PipeEnd

	// owned are descriptors opened by Resolve that the parent closes once
	// the child holds its own copies
	owned []*os.File
}

// Resolve opens the files and pipes the plan asks for. On error every
// descriptor opened so far is closed again.
func Resolve(plan Plan, mode Mode) (*Resolved, error) {
	if err := plan.Validate(mode); err != nil {
		return nil, &models.LaunchError{Op: "stdio plan", Err: err}
	}

	res := &Resolved{}

	for _, s := range []Stream{Stdin, Stdout, Stderr} {
		if err := res.resolve(s, plan.Directive(s)); err != nil {
			res.Close()
			return nil, err
		}
	}

	return res, nil
}

func (r *Resolved) resolve(s Stream, d Directive) error {
	switch d.Kind {
	case KindInherit:
		r.Child[s] = inherited(s)

	case KindFile:
		f, err := openRedirect(s, d.Path)
		if err != nil {
			return &models.LaunchError{
				Program: d.Path,
				Op:      fmt.Sprintf("open %s", s),
				Err:     err,
			}
		}
		r.Child[s] = f
		r.owned = append(r.owned, f)

	case KindPipe:
		pr, pw, err := newPipe()
		if err != nil {
			return &models.ResourceError{Op: fmt.Sprintf("pipe %s", s), Err: err}
		}
		r.Child[s] = pw
		r.owned = append(r.owned, pw)
		r.Pipes = append(r.Pipes, PipeEnd{
			Stream: s,
			File:   pr,
			Fd:     int(pr.Fd()),
			Sink:   d.Sink,
		})
	}

	return nil
}

// CloseChildEnds closes the parent's copies of the descriptors that now
// live in the child. Pipe read ends stay open.
func (r *Resolved) CloseChildEnds() error {
	var errs []error
	for _, f := range r.owned {
		if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, err)
		}
	}
	r.owned = nil
	return errors.Join(errs...)
}

// Close releases everything, including the pipe read ends. Used on the
// error paths of a launch.
func (r *Resolved) Close() error {
	errs := []error{r.CloseChildEnds()}
	for _, p := range r.Pipes {
		if err := p.File.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, err)
		}
	}
	r.Pipes = nil
	return errors.Join(errs...)
}

func inherited(s Stream) *os.File {
	switch s {
	case Stdin:
		return os.Stdin
	case Stdout:
		return os.Stdout
	default:
		return os.Stderr
	}
}

func openRedirect(s Stream, path string) (*os.File, error) {
	if s == Stdin {
		return os.Open(path)
	}
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, FileMode)
}
