package app

import (
	"github.com/lambda-feedback/sysproc/config"
	"github.com/lambda-feedback/sysproc/internal/execution/dispatcher"
	"github.com/lambda-feedback/sysproc/internal/metrics"
	"github.com/lambda-feedback/sysproc/internal/shell"
	"github.com/lambda-feedback/sysproc/util/logging"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
)

// New creates the shell every long running command runs in. It provides
// the config, the metrics collector and the dispatcher.
func New(ctx *cli.Context, cfg config.Config) (*shell.Shell, error) {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return nil, err
	}

	sharedModule := fx.Module(
		"shared",
		// provide global config
		fx.Supply(cfg),
		// provide metrics collector
		metrics.Module(cfg.Metrics.Namespace),
		// provide dispatcher
		dispatcher.Module(cfg.Dispatcher),
	)

	return shell.New(log, sharedModule), nil
}
