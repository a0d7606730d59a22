package metrics

import (
	"net/http"
	"time"

	"github.com/lambda-feedback/sysproc/internal/execution/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus implements Collector on top of its own registry.
type Prometheus struct {
	stateTransitions *prometheus.CounterVec
	escalations      *prometheus.CounterVec
	callDuration     *prometheus.HistogramVec
	outcomes         *prometheus.CounterVec
	launchFailures   *prometheus.CounterVec
	acquireDuration  prometheus.Histogram

	registry *prometheus.Registry
}

var _ Collector = (*Prometheus)(nil)

func NewPrometheus(namespace string) *Prometheus {
	if namespace == "" {
		namespace = "sysproc"
	}

	p := &Prometheus{
		registry: prometheus.NewRegistry(),
	}

	p.stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Total number of supervision state transitions",
		},
		[]string{"from_state", "to_state"},
	)

	p.escalations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Total number of signals sent by the escalation ladder",
		},
		[]string{"rung"},
	)

	p.callDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Wall-clock duration of supervised calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"state"},
	)

	p.outcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "isolated_outcomes_total",
			Help:      "Total number of isolated call outcomes",
		},
		[]string{"kind"},
	)

	p.launchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "launch_failures_total",
			Help:      "Total number of failed launches",
		},
		[]string{"reason"},
	)

	p.acquireDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pool_acquire_duration_seconds",
			Help:      "Time spent waiting for a free supervisor",
			Buckets:   prometheus.DefBuckets,
		},
	)

	p.registry.MustRegister(
		p.stateTransitions,
		p.escalations,
		p.callDuration,
		p.outcomes,
		p.launchFailures,
		p.acquireDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return p
}

func (p *Prometheus) StateTransition(from, to models.State) {
	p.stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
}

func (p *Prometheus) Escalation(rung string) {
	p.escalations.WithLabelValues(rung).Inc()
}

func (p *Prometheus) CallFinished(state models.State, duration time.Duration) {
	p.callDuration.WithLabelValues(state.String()).Observe(duration.Seconds())
}

func (p *Prometheus) Outcome(kind models.OutcomeKind) {
	p.outcomes.WithLabelValues(kind.String()).Inc()
}

func (p *Prometheus) LaunchFailed(reason string) {
	p.launchFailures.WithLabelValues(reason).Inc()
}

func (p *Prometheus) PoolAcquire(wait time.Duration) {
	p.acquireDuration.Observe(wait.Seconds())
}

// Registry returns the registry the collector registers its metrics in.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
