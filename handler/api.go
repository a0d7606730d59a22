package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/lambda-feedback/sysproc/internal/execution/dispatcher"
	"github.com/lambda-feedback/sysproc/internal/execution/isolate"
	"github.com/lambda-feedback/sysproc/internal/execution/models"
	"github.com/lambda-feedback/sysproc/internal/execution/specfile"
	"github.com/lambda-feedback/sysproc/internal/execution/stdio"
	"github.com/lambda-feedback/sysproc/internal/execution/supervisor"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// maxOutput bounds the captured output returned per stream.
const maxOutput = 1 << 20

var ErrMissingWork = errors.New("missing work name")

// ExecAPI is served under the "exec" namespace, i.e. as exec_run and
// exec_call.
type ExecAPI struct {
	dispatcher dispatcher.Dispatcher
	log        *zap.Logger
}

type ExecAPIParams struct {
	fx.In

	Dispatcher dispatcher.Dispatcher
	Log        *zap.Logger
}

func NewExecAPI(params ExecAPIParams) *ExecAPI {
	return &ExecAPI{
		dispatcher: params.Dispatcher,
		log:        params.Log.Named("exec_api"),
	}
}

type RunResponse struct {
	ID              string `json:"id"`
	Pid             int    `json:"pid"`
	State           string `json:"state"`
	Reason          string `json:"reason,omitempty"`
	ExitCode        int    `json:"exit_code"`
	Signal          int    `json:"signal,omitempty"`
	Escalations     int    `json:"escalations"`
	Duration        string `json:"duration"`
	Stdout          string `json:"stdout"`
	Stderr          string `json:"stderr"`
	OutputTruncated bool   `json:"output_truncated,omitempty"`
	Error           string `json:"error,omitempty"`
}

// Run runs a command document as accepted by "sysproc run --spec".
// Streams that are not redirected to a file are captured and returned.
// The call is cancelled if the client goes away.
func (api *ExecAPI) Run(ctx context.Context, doc json.RawMessage) (*RunResponse, error) {
	var stdout, stderr limitedBuffer
	stdout.max, stderr.max = maxOutput, maxOutput

	base, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	cmd, err := specfile.Parse(doc, base, specfile.Sinks{
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if err != nil {
		return nil, err
	}

	// the server's own streams are never handed out
	if cmd.Spec.Stdio.Stdin.Kind == stdio.KindInherit {
		cmd.Spec.Stdio.Stdin = stdio.Discard()
	}
	if cmd.Spec.Stdio.Stdout.Kind == stdio.KindInherit {
		cmd.Spec.Stdio.Stdout = stdio.Pipe(&stdout)
	}
	if cmd.Spec.Stdio.Stderr.Kind == stdio.KindInherit {
		cmd.Spec.Stdio.Stderr = stdio.Pipe(&stderr)
	}

	res, err := api.dispatcher.Run(ctx, cmd.Spec, supervisor.Options{
		Timeout: cmd.Timeout,
	})
	if res == nil {
		return nil, err
	}

	api.log.Debug("run finished",
		zap.String("call_id", res.ID),
		zap.Stringer("state", res.State),
	)

	response := &RunResponse{
		ID:              res.ID,
		Pid:             res.Pid,
		State:           res.State.String(),
		ExitCode:        res.ExitCode,
		Signal:          res.Signal,
		Escalations:     res.Escalations,
		Duration:        res.Duration.String(),
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
		OutputTruncated: stdout.truncated || stderr.truncated,
	}

	if res.Reason != models.ReasonNone {
		response.Reason = res.Reason.String()
	}

	if err != nil {
		response.Error = err.Error()
	}

	return response, nil
}

type CallRequest struct {
	Work    string `json:"work"`
	Input   string `json:"input"`
	Timeout string `json:"timeout,omitempty"`
}

type CallResponse struct {
	Outcome string `json:"outcome"`
	Payload string `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Call runs registered work in an isolated worker.
func (api *ExecAPI) Call(ctx context.Context, req CallRequest) (*CallResponse, error) {
	if req.Work == "" {
		return nil, ErrMissingWork
	}

	var timeout time.Duration
	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout: %w", err)
		}
		timeout = d

		if timeout <= 0 {
			timeout = supervisor.NoTimeout
		}
	}

	outcome, err := api.dispatcher.Call(ctx, req.Work, []byte(req.Input), isolate.Options{
		Timeout: timeout,
	})

	response := &CallResponse{
		Outcome: outcome.Kind.String(),
		Payload: string(outcome.Payload),
	}

	if err != nil {
		response.Error = err.Error()
	}

	return response, nil
}

// limitedBuffer keeps the first max bytes and drops the rest, without
// failing the writer.
type limitedBuffer struct {
	buf       []byte
	max       int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.max - len(b.buf); room < len(p) {
		b.truncated = true
		if room > 0 {
			b.buf = append(b.buf, p[:room]...)
		}
		return len(p), nil
	}

	b.buf = append(b.buf, p...)

	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return string(b.buf)
}
