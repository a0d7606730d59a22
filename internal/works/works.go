// Package works holds the units of work the sysproc binary can run in an
// isolated worker. Importing the package registers them.
package works

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lambda-feedback/sysproc/internal/execution/isolate"
)

const (
	Echo  = "echo"
	Upper = "upper"
	Sleep = "sleep"
	Fail  = "fail"
	Panic = "panic"
	Crash = "crash"
)

var ErrEmptyInput = errors.New("input is empty")

func init() {
	isolate.Register(Echo, echo)
	isolate.Register(Upper, upper)
	isolate.Register(Sleep, sleep)
	isolate.Register(Fail, fail)
	isolate.Register(Panic, panicking)
	isolate.Register(Crash, crash)
}

func echo(_ context.Context, input []byte) ([]byte, error) {
	return input, nil
}

func upper(_ context.Context, input []byte) ([]byte, error) {
	return bytes.ToUpper(input), nil
}

// sleep waits for the duration given as input, e.g. "1.5s", or until the
// worker is asked to stop.
func sleep(ctx context.Context, input []byte) ([]byte, error) {
	d, err := time.ParseDuration(strings.TrimSpace(string(input)))
	if err != nil {
		return nil, fmt.Errorf("invalid duration: %w", err)
	}

	select {
	case <-time.After(d):
		return []byte(fmt.Sprintf("slept %s", d)), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("interrupted: %w", ctx.Err())
	}
}

// fail returns its input as error message.
func fail(_ context.Context, input []byte) ([]byte, error) {
	if len(input) == 0 {
		return nil, ErrEmptyInput
	}

	return nil, errors.New(string(input))
}

func panicking(_ context.Context, input []byte) ([]byte, error) {
	panic(string(input))
}

// crash exits without writing an outcome, with the input as exit code
// if it is a number.
func crash(_ context.Context, input []byte) ([]byte, error) {
	code := 3
	fmt.Sscanf(string(input), "%d", &code)
	os.Exit(code)
	return nil, nil
}
