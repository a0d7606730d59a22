package handler

import "go.uber.org/fx"

func Module() fx.Option {
	return fx.Module("handler",
		fx.Provide(NewExecAPI),
		fx.Provide(NewRpcHandler),
		fx.Provide(NewRpcRoute),
		fx.Provide(NewMetricsRoute),
		fx.Provide(NewHealthRoute),
	)
}
