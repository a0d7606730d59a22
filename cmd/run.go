package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lambda-feedback/sysproc/internal/execution/specfile"
	"github.com/lambda-feedback/sysproc/internal/execution/supervisor"
	"github.com/lambda-feedback/sysproc/util/logging"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	runCmdDescription = `The run command launches a program in its own process group and
supervises it until it exits. Output is passed through, sent to
files, discarded or captured through the supervisor, which drains
it while watching the timeout.

An interrupt or terminate signal sent to sysproc asks the child to
stop. The child is sent SIGINT first, then SIGTERM, and finally the
whole process group is killed. Every further signal received moves
to the next step right away.

The exit code mirrors the child's. A timeout exits with 124, a
cancellation with 130, a launch failure with 127 and a child killed
by signal N with 128+N.

With --background, the child is started and its pid is printed
without waiting for it.`
	runCmd = &cli.Command{
		Name:        "run",
		Usage:       "Run a program under supervision.",
		ArgsUsage:   "[--] program [args...]",
		Description: runCmdDescription,
		Action:      runAction,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "stop the child after this duration. 0 disables the timeout.",
			},
			&cli.StringFlag{
				Name:  "stdin",
				Usage: "the child's stdin. Options: inherit, discard, or a file path.",
				Value: specfile.StreamInherit,
			},
			&cli.StringFlag{
				Name:  "stdout",
				Usage: "the child's stdout. Options: inherit, discard, capture, or a file path.",
				Value: specfile.StreamInherit,
			},
			&cli.StringFlag{
				Name:  "stderr",
				Usage: "the child's stderr. Options: inherit, discard, capture, or a file path.",
				Value: specfile.StreamInherit,
			},
			&cli.BoolFlag{
				Name:    "background",
				Aliases: []string{"b"},
				Usage:   "start the child and print its pid without waiting for it.",
			},
			&cli.PathFlag{
				Name:  "spec",
				Usage: "read the command from a yaml or json file instead of the arguments.",
			},
		},
	}
)

var errNoProgram = errors.New("no program given")

func runAction(ctx *cli.Context) error {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	cmd, err := commandFromCli(ctx)
	if err != nil {
		return err
	}

	sv := supervisor.New(supervisor.Params{
		Config: cfg.Dispatcher.Supervisor,
		Log:    log,
	})

	if ctx.Bool("background") {
		bg, err := sv.Spawn(ctx.Context, cmd.Spec)
		if err != nil {
			return exitError(nil, err)
		}

		fmt.Fprintln(ctx.App.Writer, bg.Pid())

		return nil
	}

	interrupt, stop := forwardSignals()
	defer stop()

	res, err := sv.Run(ctx.Context, cmd.Spec, supervisor.Options{
		Timeout:   cmd.Timeout,
		Interrupt: interrupt,
	})

	if res != nil {
		log.Debug("run finished",
			zap.String("call_id", res.ID),
			zap.Stringer("state", res.State),
			zap.Int("exit_code", res.ExitCode),
			zap.Duration("duration", res.Duration),
			zap.Int("escalations", res.Escalations),
		)
	}

	return exitError(res, err)
}

// commandFromCli builds the command from --spec or from the arguments.
// Flags that were set override the file.
func commandFromCli(ctx *cli.Context) (*specfile.Command, error) {
	sinks := specfile.Sinks{Stdout: os.Stdout, Stderr: os.Stderr}

	if path := ctx.Path("spec"); path != "" {
		cmd, err := specfile.Load(path, sinks)
		if err != nil {
			return nil, err
		}

		if ctx.IsSet("timeout") {
			cmd.Timeout = flagTimeout(ctx)
		}

		return cmd, nil
	}

	if ctx.NArg() == 0 {
		return nil, errNoProgram
	}

	base, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	file := specfile.File{
		Program: ctx.Args().First(),
		Args:    ctx.Args().Tail(),
		Stdin:   ctx.String("stdin"),
		Stdout:  ctx.String("stdout"),
		Stderr:  ctx.String("stderr"),
	}

	cmd, err := file.Command(base, sinks)
	if err != nil {
		return nil, err
	}

	cmd.Timeout = flagTimeout(ctx)

	return cmd, nil
}

// flagTimeout reads --timeout. No flag means the configured default, an
// explicit zero or less means none.
func flagTimeout(ctx *cli.Context) time.Duration {
	if !ctx.IsSet("timeout") {
		return 0
	}

	if d := ctx.Duration("timeout"); d > 0 {
		return d
	}

	return supervisor.NoTimeout
}

// forwardSignals turns interrupt and terminate signals into triggers of
// the supervisor's escalation ladder.
func forwardSignals() (<-chan struct{}, func()) {
	signals := make(chan os.Signal, 4)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	interrupt := make(chan struct{}, 4)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-signals:
				select {
				case interrupt <- struct{}{}:
				default:
				}
			case <-done:
				return
			}
		}
	}()

	return interrupt, func() {
		signal.Stop(signals)
		close(done)
	}
}

func init() {
	rootApp.Commands = append(rootApp.Commands, runCmd)
}
