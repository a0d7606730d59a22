package cmd

import (
	"github.com/lambda-feedback/sysproc/app"
	"github.com/lambda-feedback/sysproc/app/serve"
	"github.com/lambda-feedback/sysproc/util/logging"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	serveCmdDescription = `The serve command starts a http server that runs commands and
isolated work on behalf of its clients.

	POST /rpc       JSON-RPC 2.0, methods exec_run and exec_call
	GET  /metrics   Prometheus metrics
	GET  /health    liveness

exec_run takes a command document as accepted by "run --spec" and
returns the result together with the captured output. exec_call
takes {"work", "input", "timeout"} and returns the outcome.

The number of concurrently supervised children is bounded by
--max-workers. The command blocks until it receives an interrupt or
terminate signal.`
	serveCmd = &cli.Command{
		Name:        "serve",
		Usage:       "Start a http server and run commands for its clients.",
		Description: serveCmdDescription,
		Action:      serveAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "host",
				Aliases:  []string{"H"},
				Usage:    "The host to listen on.",
				Category: "http",
			},
			&cli.IntFlag{
				Name:     "port",
				Aliases:  []string{"P"},
				Usage:    "The port to listen on.",
				Category: "http",
			},
			&cli.BoolFlag{
				Name:     "h2c",
				Usage:    "Enable HTTP/2 cleartext upgrade.",
				Category: "http",
			},
			&cli.StringFlag{
				Name:     "api-key",
				Usage:    "Require this key in the api-key header of rpc requests.",
				Category: "http",
			},
			&cli.Int64Flag{
				Name:  "max-payload",
				Usage: "maximum size of input and result of isolated work in bytes.",
			},
		},
	}
)

func serveAction(ctx *cli.Context) error {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	app, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}

	log.Info("starting server",
		zap.String("host", cfg.Http.Host),
		zap.Int("port", cfg.Http.Port),
	)

	return app.Run(ctx.Context, serve.Module(cfg.Http))
}

func init() {
	rootApp.Commands = append(rootApp.Commands, serveCmd)
}
