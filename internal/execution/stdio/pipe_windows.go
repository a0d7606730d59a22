package stdio

import "os"

func newPipe() (*os.File, *os.File, error) {
	return os.Pipe()
}

// NewPipe exposes the pipe primitive to the launcher and the isolated
// call executor, which need private channels besides the stdio plan.
func NewPipe() (*os.File, *os.File, error) {
	return newPipe()
}

// SetNonblock is a no-op on windows; pipes are drained by reader
// goroutines there.
func SetNonblock(int) error {
	return nil
}
