package server

import "go.uber.org/fx"

// Module runs the http server for the lifetime of the app.
func Module(config HttpConfig) fx.Option {
	return fx.Module("server",
		fx.Supply(config),
		fx.Provide(NewLifecycleServer),
		// the server has no dependents, force its construction
		fx.Invoke(func(*HttpServer) {}),
	)
}
