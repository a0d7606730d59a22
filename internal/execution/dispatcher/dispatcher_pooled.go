package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/jackc/puddle/v2"
	"github.com/lambda-feedback/sysproc/internal/execution/isolate"
	"github.com/lambda-feedback/sysproc/internal/execution/launcher"
	"github.com/lambda-feedback/sysproc/internal/execution/models"
	"github.com/lambda-feedback/sysproc/internal/execution/supervisor"
	"github.com/lambda-feedback/sysproc/internal/metrics"
	"go.uber.org/zap"
)

// PooledDispatcher hands every call to an idle supervisor out of a
// bounded pool, which bounds the number of concurrently supervised
// children.
type PooledDispatcher struct {
	pool       *puddle.Pool[supervisor.Supervisor]
	maxPayload int64
	metrics    metrics.Collector
	log        *zap.Logger
}

var _ Dispatcher = (*PooledDispatcher)(nil)

type PooledDispatcherConfig struct {
	// MaxWorkers is the maximum number of concurrent calls. Defaults to
	// the number of CPUs.
	MaxWorkers int `conf:"max_workers"`

	// MaxPayload bounds the input and result of isolated calls
	MaxPayload int64 `conf:"max_payload"`

	// Supervisor is the configuration to use for the supervisors
	Supervisor supervisor.Config `conf:"supervisor"`
}

type PooledDispatcherParams struct {
	// Config is the config for the dispatcher and the underlying supervisors
	Config PooledDispatcherConfig

	// SupervisorFactory is the factory function to create a new supervisor
	SupervisorFactory SupervisorFactory

	// Metrics receives pool and call metrics. Optional.
	Metrics metrics.Collector

	// Log is the logger to use for the dispatcher
	Log *zap.Logger
}

func NewPooledDispatcher(params PooledDispatcherParams) (*PooledDispatcher, error) {
	if params.SupervisorFactory == nil {
		params.SupervisorFactory = defaultSupervisorFactory
	}

	if params.Config.MaxWorkers <= 0 {
		params.Config.MaxWorkers = runtime.NumCPU()
	}

	if params.Log == nil {
		params.Log = zap.NewNop()
	}

	params.Metrics = metrics.OrNoop(params.Metrics)

	pool, err := createPool(params)
	if err != nil {
		return nil, err
	}

	return &PooledDispatcher{
		pool:       pool,
		maxPayload: params.Config.MaxPayload,
		metrics:    params.Metrics,
		log:        params.Log.Named("dispatcher_pooled"),
	}, nil
}

func (d *PooledDispatcher) Run(
	ctx context.Context,
	spec launcher.Spec,
	opts supervisor.Options,
) (*models.Result, error) {
	resource, err := d.acquire(ctx)
	if err != nil {
		closeExtraFiles(spec)
		return nil, err
	}

	res, err := resource.Value().Run(ctx, spec, opts)
	d.dispose(resource, err)

	return res, err
}

func (d *PooledDispatcher) Call(
	ctx context.Context,
	name string,
	input []byte,
	opts isolate.Options,
) (models.Outcome, error) {
	resource, err := d.acquire(ctx)
	if err != nil {
		return models.WorkerDied(), err
	}

	executor := isolate.NewExecutor(isolate.Params{
		Supervisor: resource.Value(),
		MaxPayload: d.maxPayload,
		Metrics:    d.metrics,
		Log:        d.log,
	})

	outcome, err := executor.Call(ctx, name, input, opts)
	d.dispose(resource, err)

	return outcome, err
}

// Shutdown stops handing out supervisors and waits for all calls to
// return their supervisor, or for ctx to end.
func (d *PooledDispatcher) Shutdown(ctx context.Context) error {
	d.log.Debug("shutting down dispatcher")

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.pool.Close()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *PooledDispatcher) acquire(
	ctx context.Context,
) (*puddle.Resource[supervisor.Supervisor], error) {
	start := time.Now()

	resource, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("error acquiring supervisor: %w", err)
	}

	d.metrics.PoolAcquire(time.Since(start))

	return resource, nil
}

// dispose returns the supervisor to the pool. A supervisor that reported
// itself busy is not trusted again.
func (d *PooledDispatcher) dispose(
	resource *puddle.Resource[supervisor.Supervisor],
	err error,
) {
	if errors.Is(err, models.ErrSupervisorBusy) {
		d.log.Warn("destroying busy supervisor")
		resource.Destroy()
		return
	}

	resource.Release()
}

func closeExtraFiles(spec launcher.Spec) {
	for _, f := range spec.ExtraFiles {
		f.Close()
	}
}

// MARK: - Pool

func createPool(
	params PooledDispatcherParams,
) (*puddle.Pool[supervisor.Supervisor], error) {
	constructor := func(context.Context) (supervisor.Supervisor, error) {
		return params.SupervisorFactory(supervisor.Params{
			Config:  params.Config.Supervisor,
			Metrics: params.Metrics,
			Log:     params.Log,
		})
	}

	// supervisors own no resources between calls
	destructor := func(supervisor.Supervisor) {}

	return puddle.NewPool(&puddle.Config[supervisor.Supervisor]{
		Constructor: constructor,
		Destructor:  destructor,
		MaxSize:     int32(params.Config.MaxWorkers),
	})
}
