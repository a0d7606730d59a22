package isolate

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lambda-feedback/sysproc/internal/execution/launcher"
	"github.com/lambda-feedback/sysproc/internal/execution/models"
)

// Descriptors of the worker.
const (
	inputFd   = 3
	resultFd  = 4
	failureFd = 5
)

// Codes reported on the failure channel.
const (
	FailureUnknownWork int32 = 1
	FailureBadInput    int32 = 2
)

// maxInput bounds the input frame the worker accepts.
const maxInput = 1 << 31

// workerMain is the entry point of the re-executed binary. Setup
// failures are reported on the failure channel, after which the worker
// kills itself so it never runs into the host's main.
func workerMain() {
	failure := os.NewFile(failureFd, "failure")
	input := os.NewFile(inputFd, "input")
	result := os.NewFile(resultFd, "result")

	if len(os.Args) < 2 {
		fail(failure, FailureUnknownWork, "missing work name")
	}

	name := os.Args[1]

	fn, ok := lookup(name)
	if !ok {
		fail(failure, FailureUnknownWork, fmt.Sprintf("unknown work %q", name))
	}

	payload, err := readFrame(input, maxInput)
	if err != nil {
		fail(failure, FailureBadInput, fmt.Sprintf("read input: %v", err))
	}
	input.Close()

	// processes started by the work must not hold the result channel
	syscall.CloseOnExec(resultFd)

	// setup is done, an empty failure channel tells the parent so
	failure.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	outcome := run(ctx, fn, payload)
	stop()

	if err := writeOutcome(result, outcome); err != nil {
		os.Exit(1)
	}
	result.Close()

	os.Exit(0)
}

// run executes the work and turns errors and panics into Err outcomes.
func run(ctx context.Context, fn WorkFunc, input []byte) (outcome models.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = models.Err([]byte(fmt.Sprintf("panic: %v", r)))
		}
	}()

	out, err := fn(ctx, input)
	if err != nil {
		return models.Err([]byte(err.Error()))
	}

	return models.Ok(out)
}

func fail(channel *os.File, code int32, message string) {
	launcher.WriteFailure(channel, code, message)
	die()
}
