package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/lambda-feedback/sysproc/internal/execution/isolate"
	"github.com/lambda-feedback/sysproc/internal/execution/models"
	"github.com/lambda-feedback/sysproc/internal/execution/supervisor"
	"github.com/lambda-feedback/sysproc/internal/shell"
	"github.com/lambda-feedback/sysproc/util/logging"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	callCmdDescription = `The call command runs a registered unit of work in a fresh worker
process and prints its result. A crash of the work takes down the
worker only. Use the works command to list the available work.

The result is written to stdout. An error returned by the work is
written to stderr and exits with 1. A worker that died without a
result exits with 1 as well, or with 124 on timeout.`
	callCmd = &cli.Command{
		Name:        "call",
		Usage:       "Run registered work in an isolated worker.",
		ArgsUsage:   "work",
		Description: callCmdDescription,
		Action:      callAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "the input passed to the work. Use - to read stdin.",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "stop the worker after this duration.",
			},
			&cli.Int64Flag{
				Name:  "max-payload",
				Usage: "maximum size of input and result in bytes.",
			},
		},
	}
)

var errNoWork = errors.New("no work given")

func callAction(ctx *cli.Context) error {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	name := ctx.Args().First()
	if name == "" {
		return errNoWork
	}

	input := []byte(ctx.String("input"))
	if ctx.String("input") == "-" {
		if input, err = io.ReadAll(os.Stdin); err != nil {
			return err
		}
	}

	executor := isolate.NewExecutor(isolate.Params{
		Supervisor: supervisor.New(supervisor.Params{
			Config: cfg.Dispatcher.Supervisor,
			Log:    log,
		}),
		MaxPayload: cfg.Dispatcher.MaxPayload,
		Log:        log,
	})

	interrupt, stop := forwardSignals()
	defer stop()

	outcome, err := executor.Call(ctx.Context, name, input, isolate.Options{
		Timeout:   flagTimeout(ctx),
		Interrupt: interrupt,
	})

	switch outcome.Kind {
	case models.OutcomeOk:
		ctx.App.Writer.Write(outcome.Payload)
		return nil
	case models.OutcomeErr:
		fmt.Fprintf(ctx.App.ErrWriter, "%s\n", outcome.Payload)
		return shell.NewExitError(1)
	}

	if models.IsLaunchError(err) {
		return shell.WrapExitError(exitLaunch, err)
	}

	if errors.Is(err, models.ErrTimedOut) {
		return shell.WrapExitError(exitTimedOut, err)
	}

	if errors.Is(err, models.ErrCancelled) {
		return shell.WrapExitError(exitCancelled, err)
	}

	log.Debug("worker died", zap.Error(err))

	return shell.WrapExitError(1, err)
}

func init() {
	rootApp.Commands = append(rootApp.Commands, callCmd)
}
