package dispatcher

import (
	"context"

	"github.com/lambda-feedback/sysproc/internal/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides a pooled dispatcher that is shut down with the app.
func Module(config PooledDispatcherConfig) fx.Option {
	return fx.Module(
		"dispatcher",

		// provide dispatcher config
		fx.Supply(config),

		// provide dispatcher
		fx.Provide(NewLifecycleDispatcher),
	)
}

type LifecycleParams struct {
	fx.In

	Config  PooledDispatcherConfig
	Metrics metrics.Collector `optional:"true"`
	Log     *zap.Logger
}

func NewLifecycleDispatcher(params LifecycleParams, lc fx.Lifecycle) (Dispatcher, error) {
	d, err := NewPooledDispatcher(PooledDispatcherParams{
		Config:  params.Config,
		Metrics: params.Metrics,
		Log:     params.Log,
	})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return d.Shutdown(ctx)
		},
	})

	return d, nil
}
