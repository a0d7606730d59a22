package serve

import (
	"go.uber.org/fx"

	"github.com/lambda-feedback/sysproc/handler"
	"github.com/lambda-feedback/sysproc/internal/server"
	"github.com/lambda-feedback/sysproc/util/logging"
)

func Module(config server.HttpConfig) fx.Option {
	return fx.Module(
		"serve",
		// rename logger for module
		logging.DecorateLogger("serve"),
		// provide rpc, metrics and health handlers
		handler.Module(),
		// provide server
		server.Module(config),
	)
}
