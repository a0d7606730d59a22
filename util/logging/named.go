package logging

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NamedLogger(name string) func(log *zap.Logger) *zap.Logger {
	return func(log *zap.Logger) *zap.Logger {
		return log.Named(name)
	}
}

// DecorateLogger names the logger seen by everything in the enclosing
// fx module.
func DecorateLogger(name string) fx.Option {
	return fx.Decorate(NamedLogger(name))
}
