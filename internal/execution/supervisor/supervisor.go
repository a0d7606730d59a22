package supervisor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lambda-feedback/sysproc/internal/execution/launcher"
	"github.com/lambda-feedback/sysproc/internal/execution/models"
	"github.com/lambda-feedback/sysproc/internal/execution/stdio"
	"github.com/lambda-feedback/sysproc/internal/metrics"
	"go.uber.org/zap"
)

type Supervisor interface {
	// Run launches the command, drains its output, enforces the timeout
	// and cancellation, and returns once the child and its process group
	// are gone. Only one Run may be in flight per supervisor.
	Run(ctx context.Context, spec launcher.Spec, opts Options) (*models.Result, error)

	// Spawn launches the command in the background and returns without
	// waiting for it.
	Spawn(ctx context.Context, spec launcher.Spec) (*Background, error)

	// Config returns the effective configuration.
	Config() Config
}

// NoTimeout disables the timeout of a call regardless of the config.
const NoTimeout time.Duration = -1

// Options are the per call settings of Run.
type Options struct {
	// Timeout overrides the configured timeout if non-zero. A negative
	// value disables the timeout.
	Timeout time.Duration

	// Interrupt requests cancellation. Every receive counts as a trigger,
	// so repeated sends climb the escalation ladder faster. Closing the
	// channel counts as a single trigger.
	Interrupt <-chan struct{}

	// ID identifies the call. A random id is generated if empty.
	ID string
}

type ProcessSupervisor struct {
	config  Config
	busy    atomic.Bool
	metrics metrics.Collector
	log     *zap.Logger
}

var _ Supervisor = (*ProcessSupervisor)(nil)

type Params struct {
	// Config is the config used for every call of the supervisor.
	Config Config

	// Metrics receives state transitions and escalations. Optional.
	Metrics metrics.Collector

	// Log is the logger to use for the supervisor
	Log *zap.Logger
}

func New(params Params) *ProcessSupervisor {
	log := params.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &ProcessSupervisor{
		config:  params.Config.withDefaults(),
		metrics: metrics.OrNoop(params.Metrics),
		log:     log.Named("supervisor"),
	}
}

func (s *ProcessSupervisor) Config() Config {
	return s.config
}

func (s *ProcessSupervisor) Run(
	ctx context.Context,
	spec launcher.Spec,
	opts Options,
) (*models.Result, error) {
	// supervisors are handed out by a pool, but a shared instance must
	// still refuse a second concurrent call
	if !s.busy.CompareAndSwap(false, true) {
		for _, f := range spec.ExtraFiles {
			f.Close()
		}
		return nil, models.ErrSupervisorBusy
	}
	defer s.busy.Store(false)

	c := s.newCall(opts)

	h, err := launcher.Launch(ctx, spec, stdio.ModeBlocking, c.log)
	if err != nil {
		return c.launchFailed(err)
	}

	return c.supervise(ctx, h)
}

func (s *ProcessSupervisor) newCall(opts Options) *call {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}

	timeout := s.config.Timeout
	if opts.Timeout != 0 {
		timeout = opts.Timeout
	}

	return &call{
		id:        id,
		state:     models.StateStarting,
		config:    s.config,
		timeout:   timeout,
		interrupt: opts.Interrupt,
		ladder:    newLadder(s.config.Grace),
		metrics:   s.metrics,
		log:       s.log.With(zap.String("call_id", id)),
	}
}
