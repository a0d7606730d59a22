package metrics

import "go.uber.org/fx"

// Module provides a prometheus collector, both as itself for the
// metrics endpoint and as Collector for everything that records.
func Module(namespace string) fx.Option {
	return fx.Module(
		"metrics",
		fx.Provide(func() *Prometheus { return NewPrometheus(namespace) }),
		fx.Provide(func(p *Prometheus) Collector { return p }),
	)
}
