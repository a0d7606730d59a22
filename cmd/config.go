package cmd

import (
	"github.com/lambda-feedback/sysproc/config"
	"github.com/lambda-feedback/sysproc/util/conf"
	"github.com/lambda-feedback/sysproc/util/logging"
	"github.com/urfave/cli/v2"
)

// cliConfigKeys maps flags onto nested config keys. Flags not listed map
// to their name with dashes replaced by underscores.
var cliConfigKeys = map[string]string{
	"grace":         "dispatcher.supervisor.grace",
	"poll-interval": "dispatcher.supervisor.poll_interval",
	"timeout":       "dispatcher.supervisor.timeout",
	"max-workers":   "dispatcher.max_workers",
	"max-payload":   "dispatcher.max_payload",
	"host":          "http.host",
	"port":          "http.port",
	"h2c":           "http.h2c",
	"api-key":       "auth.key",
}

// loadConfig layers defaults, the config file, the environment and the
// flags of the running command.
func loadConfig(ctx *cli.Context) (config.Config, error) {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return config.Config{}, err
	}

	return conf.Parse[config.Config](conf.ParseOptions{
		Cli:       ctx,
		CliMap:    cliConfigKeys,
		Defaults:  config.DefaultConfig,
		EnvPrefix: config.EnvPrefix,
		FileName:  ctx.Path("config"),
		Log:       log,
	})
}
