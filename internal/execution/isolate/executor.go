package isolate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/docker/docker/pkg/reexec"
	"github.com/google/uuid"
	"github.com/lambda-feedback/sysproc/internal/execution/launcher"
	"github.com/lambda-feedback/sysproc/internal/execution/models"
	"github.com/lambda-feedback/sysproc/internal/execution/stdio"
	"github.com/lambda-feedback/sysproc/internal/execution/supervisor"
	"github.com/lambda-feedback/sysproc/internal/metrics"
	"go.uber.org/zap"
)

// DefaultMaxPayload bounds input and result payloads.
const DefaultMaxPayload int64 = 64 << 20

// outcomeWait bounds the wait for the result reader once the worker is
// reaped and its group killed.
const outcomeWait = 2 * time.Second

type Executor struct {
	supervisor supervisor.Supervisor
	maxPayload int64
	metrics    metrics.Collector
	log        *zap.Logger
}

type Params struct {
	// Supervisor runs the worker processes
	Supervisor supervisor.Supervisor

	// MaxPayload bounds input and result payloads, DefaultMaxPayload
	// if zero
	MaxPayload int64

	// Metrics receives outcomes. Optional.
	Metrics metrics.Collector

	Log *zap.Logger
}

func NewExecutor(params Params) *Executor {
	if params.MaxPayload <= 0 {
		params.MaxPayload = DefaultMaxPayload
	}

	log := params.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &Executor{
		supervisor: params.Supervisor,
		maxPayload: params.MaxPayload,
		metrics:    metrics.OrNoop(params.Metrics),
		log:        log.Named("isolate"),
	}
}

type Options struct {
	// Timeout overrides the supervisor's timeout if non-zero
	Timeout time.Duration

	// Interrupt cancels the call, see supervisor.Options
	Interrupt <-chan struct{}

	// Stdout receives the worker's standard output. Sent to the null
	// device if nil.
	Stdout io.Writer

	// Stderr receives the worker's standard error. Inherited if nil.
	Stderr io.Writer
}

type readResult struct {
	outcome models.Outcome
	err     error
}

// Call runs the work registered under name in a fresh worker.
//
// The returned error is nil for Ok and Err outcomes. A worker that died,
// was stopped by the timeout or cancellation, or wrote a malformed result
// yields a WorkerDied outcome together with the reason. Work that could
// not be set up yields a *models.LaunchError.
func (e *Executor) Call(
	ctx context.Context,
	name string,
	input []byte,
	opts Options,
) (models.Outcome, error) {
	if int64(len(input)) > e.maxPayload {
		return models.WorkerDied(), fmt.Errorf("input of %d bytes: %w", len(input), ErrPayloadTooLarge)
	}

	id := uuid.NewString()
	log := e.log.With(zap.String("call_id", id), zap.String("work", name))

	inRead, inWrite, err := stdio.NewPipe()
	if err != nil {
		return models.WorkerDied(), &models.ResourceError{Op: "input channel", Err: err}
	}

	resRead, resWrite, err := stdio.NewPipe()
	if err != nil {
		inRead.Close()
		inWrite.Close()
		return models.WorkerDied(), &models.ResourceError{Op: "result channel", Err: err}
	}

	cmd := reexec.Command(workerEntry, name)

	spec := launcher.Spec{
		Path:           cmd.Path,
		Args:           cmd.Args,
		SysProcAttr:    cmd.SysProcAttr,
		ExtraFiles:     []*os.File{inRead, resWrite},
		FailureChannel: true,
		Stdio:          workerStdio(opts),
	}

	// the writer ends with EPIPE if the worker never reads
	go func() {
		defer inWrite.Close()
		if err := writeFrame(inWrite, input); err != nil {
			log.Debug("input not delivered", zap.Error(err))
		}
	}()

	// the reader never decides the worker's lifecycle, it only keeps the
	// result channel from filling up
	results := make(chan readResult, 1)
	go func() {
		defer resRead.Close()
		outcome, err := readOutcome(resRead, e.maxPayload)
		results <- readResult{outcome: outcome, err: err}
	}()

	res, runErr := e.supervisor.Run(ctx, spec, supervisor.Options{
		ID:        id,
		Timeout:   opts.Timeout,
		Interrupt: opts.Interrupt,
	})

	outcome, err := e.resolve(res, runErr, results)

	log.Debug("isolated call finished",
		zap.Stringer("outcome", outcome.Kind),
		zap.Error(err),
	)
	e.metrics.Outcome(outcome.Kind)

	return outcome, err
}

func (e *Executor) resolve(
	res *models.Result,
	runErr error,
	results <-chan readResult,
) (models.Outcome, error) {
	// launch failures, resource errors and a busy supervisor
	if res == nil || res.State == models.StateStarting || res.Pid == 0 {
		return models.WorkerDied(), runErr
	}

	switch res.State {
	case models.StateTimedOut, models.StateCancelled:
		// a forcefully stopped worker may have left a partial payload
		return models.WorkerDied(), errors.Join(models.ErrWorkerDied, runErr)
	case models.StateFailed:
		if res.Reason == models.ReasonLaunch {
			return models.WorkerDied(), runErr
		}
	}

	var read readResult
	select {
	case read = <-results:
	case <-time.After(outcomeWait):
		read = readResult{outcome: models.WorkerDied(), err: errors.New("result channel still open")}
	}

	if read.err != nil {
		e.log.Debug("no outcome from worker",
			zap.Error(read.err),
			zap.Int("exit_code", res.ExitCode),
			zap.Int("signal", res.Signal),
		)
		return models.WorkerDied(), errors.Join(models.ErrWorkerDied, read.err, runErr)
	}

	return read.outcome, nil
}

func workerStdio(opts Options) stdio.Plan {
	plan := stdio.Plan{
		Stdout: stdio.File(os.DevNull),
		Stderr: stdio.Inherit(),
	}

	if opts.Stdout != nil {
		plan.Stdout = stdio.Pipe(opts.Stdout)
	}
	if opts.Stderr != nil {
		plan.Stderr = stdio.Pipe(opts.Stderr)
	}

	return plan
}
