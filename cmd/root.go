package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/lambda-feedback/sysproc/internal/shell"
	"github.com/lambda-feedback/sysproc/util/logging"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	appName  = "sysproc"
	appUsage = `Run and supervise child processes with bounded output draining,
timeouts, cancellation and signal escalation.`
	rootApp = &cli.App{
		Name:            appName,
		Usage:           appUsage,
		HideHelpCommand: true,
		Flags: []cli.Flag{
			// general flags
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "set the log level. Options: debug, info, warn, error, panic, fatal.",
				Value:   "warn",
				EnvVars: []string{"SYSPROC_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "set the log format. Options: production, development.",
				EnvVars: []string{"SYSPROC_LOG_FORMAT"},
			},
			&cli.PathFlag{
				Name:    "config",
				Usage:   "load configuration from a json or .env file.",
				EnvVars: []string{"SYSPROC_CONFIG"},
			},
			// supervision flags
			&cli.DurationFlag{
				Name:     "grace",
				Usage:    "time to wait for the child after each escalation signal.",
				Category: "supervision",
			},
			&cli.DurationFlag{
				Name:     "poll-interval",
				Usage:    "upper bound of a single supervision wait.",
				Category: "supervision",
			},
			&cli.IntFlag{
				Name:     "max-workers",
				Usage:    "maximum number of concurrently supervised children. Defaults to the number of CPUs.",
				Category: "supervision",
			},
		},
		Before: func(ctx *cli.Context) error {
			// create the logger
			log, err := createLogger(ctx)
			if err != nil {
				return err
			}

			// inject logger into cli context
			ctx.Context = logging.ContextWithLogger(ctx.Context, log)

			return nil
		},
		After: func(ctx *cli.Context) error {
			log, err := logging.LoggerFromContext(ctx.Context)
			if err != nil {
				return nil
			}

			log.Sync()

			return nil
		},
	}
)

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:               "version",
		Usage:              "print the version",
		DisableDefaultText: true,
	}
}

type ExecuteParams struct {
	Version  string
	Compiled time.Time

	// BeforeExit runs before the process exits. Optional.
	BeforeExit func()
}

func Execute(params ExecuteParams) {
	rootApp.Version = params.Version
	rootApp.Compiled = params.Compiled

	code := run(context.Background(), os.Args)

	if params.BeforeExit != nil {
		params.BeforeExit()
	}

	os.Exit(code)
}

func run(ctx context.Context, args []string) int {
	err := rootApp.RunContext(ctx, args)

	// if app exited without error, return
	if err == nil {
		return 0
	}

	// a plain exit code mirrors the child and needs no message
	if exitErr, ok := err.(*shell.ExitError); ok && exitErr.Err == nil {
		return exitErr.ExitCode
	}

	fmt.Fprintf(os.Stderr, "%s: %s\n", appName, err)

	if !shell.IsExitError(err) {
		sentry.CaptureException(err)
	}

	return shell.ExitCode(err)
}

func createLogger(ctx *cli.Context) (*zap.Logger, error) {
	level := getLogLevelFromCLI(ctx)
	format := getLogFormatFromCLI(ctx)

	var config zap.Config
	if format == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	config.InitialFields = map[string]any{
		"app": appName,
	}

	config.Level = level

	return config.Build()
}

func getLogFormatFromCLI(ctx *cli.Context) string {
	format := ctx.String("log-format")
	if format != "" {
		return format
	}

	return "production"
}

func getLogLevelFromCLI(ctx *cli.Context) zap.AtomicLevel {
	lvl := ctx.String("log-level")

	if atom, err := zap.ParseAtomicLevel(lvl); err == nil {
		return atom
	}

	return zap.NewAtomicLevelAt(zap.InfoLevel)
}
