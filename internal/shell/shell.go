package shell

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Shell runs an fx application until the OS asks it to stop.
type Shell struct {
	log     *zap.Logger
	options []fx.Option
}

func New(log *zap.Logger, options ...fx.Option) *Shell {
	return &Shell{
		log:     log,
		options: options,
	}
}

// Run starts the application, blocks until a stop signal arrives or ctx
// ends, and stops it again. The returned ExitError carries the exit code.
func (s *Shell) Run(ctx context.Context, options ...fx.Option) error {
	defer s.log.Sync()

	// the app context outlives startup, it is cancelled on return
	appCtx, cancelApp := context.WithCancel(ctx)
	defer cancelApp()

	fxApp := s.createFxApp(appCtx, options...)

	startCtx, cancelStart := context.WithTimeout(ctx, fxApp.StartTimeout())
	defer cancelStart()

	if err := fxApp.Start(startCtx); err != nil {
		s.log.Error("failed to start", zap.Error(err))
		return WrapExitError(1, err)
	}

	var exitCode int
	select {
	case sig := <-fxApp.Wait():
		exitCode = sig.ExitCode
	case <-ctx.Done():
	}

	// stopping must not be cut short by a cancelled ctx
	stopCtx, cancelStop := context.WithTimeout(context.WithoutCancel(ctx), fxApp.StopTimeout())
	defer cancelStop()

	if err := fxApp.Stop(stopCtx); err != nil {
		s.log.Error("failed to stop", zap.Error(err))
		return WrapExitError(1, err)
	}

	if exitCode != 0 {
		return NewExitError(exitCode)
	}

	return nil
}

func (s *Shell) createFxApp(ctx context.Context, options ...fx.Option) *fx.App {
	return fx.New(
		// global execution context
		fx.Supply(fx.Annotate(ctx, fx.As(new(context.Context)))),

		fx.Supply(s.log),

		// route fx' own logs through the app logger
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: s.log.Named("fx")}
		}),

		fx.Options(s.options...),
		fx.Options(options...),
	)
}
