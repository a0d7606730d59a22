package config

import (
	"github.com/lambda-feedback/sysproc/internal/execution/dispatcher"
	"github.com/lambda-feedback/sysproc/internal/server"
	"github.com/lambda-feedback/sysproc/util/conf"
)

// EnvPrefix is the prefix of all environment variables read as config.
const EnvPrefix = "SYSPROC_"

type AuthConfig struct {
	// Key is the api key required on rpc requests. Empty disables auth.
	Key string `conf:"key"`
}

type MetricsConfig struct {
	// Namespace prefixes all metric names
	Namespace string `conf:"namespace"`
}

type Config struct {
	// LogLevel is the log level for the application
	LogLevel string `conf:"log_level"`

	// LogFormat is the log format for the application
	LogFormat string `conf:"log_format"`

	// Dispatcher bounds concurrency and configures the supervisors
	Dispatcher dispatcher.PooledDispatcherConfig `conf:"dispatcher"`

	// Http is the configuration of the serve command's server
	Http server.HttpConfig `conf:"http"`

	// Auth protects the rpc endpoint
	Auth AuthConfig `conf:"auth"`

	// Metrics configures the prometheus collector
	Metrics MetricsConfig `conf:"metrics"`
}

var DefaultConfig = conf.MergeDefaults("",
	conf.DefaultConfig{
		"log_level":  "info",
		"log_format": "production",
	},
	conf.MergeDefaults("dispatcher", conf.DefaultConfig{
		"max_workers": 0,
		"max_payload": 64 << 20,
	}),
	conf.MergeDefaults("dispatcher.supervisor", conf.DefaultConfig{
		"poll_interval": "200ms",
		"grace":         "500ms",
		"timeout":       "0s",
		"failure_wait":  "1s",
	}),
	conf.MergeDefaults("http", conf.DefaultConfig{
		"host": "localhost",
		"port": 8080,
		"h2c":  false,
	}),
	conf.MergeDefaults("metrics", conf.DefaultConfig{
		"namespace": "sysproc",
	}),
)
