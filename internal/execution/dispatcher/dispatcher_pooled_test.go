package dispatcher_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lambda-feedback/sysproc/internal/execution/dispatcher"
	"github.com/lambda-feedback/sysproc/internal/execution/isolate"
	"github.com/lambda-feedback/sysproc/internal/execution/launcher"
	"github.com/lambda-feedback/sysproc/internal/execution/models"
	"github.com/lambda-feedback/sysproc/internal/execution/supervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPooledDispatcher_New_UsesCPUCoreFallback(t *testing.T) {
	d, err := dispatcher.NewPooledDispatcher(dispatcher.PooledDispatcherParams{
		Config: dispatcher.PooledDispatcherConfig{
			MaxWorkers: 0,
		},
		Log: zap.NewNop(),
	})
	assert.NoError(t, err)
	assert.NotNil(t, d)
}

func TestPooledDispatcher_Run(t *testing.T) {
	d, sv := createPooledDispatcher(t)

	spec := launcher.Spec{Path: "true"}
	result := &models.Result{State: models.StateSucceeded}

	sv.EXPECT().Run(mock.Anything, spec, supervisor.Options{ID: "id"}).Return(result, nil)

	res, err := d.Run(context.Background(), spec, supervisor.Options{ID: "id"})
	assert.NoError(t, err)
	assert.Same(t, result, res)
}

func TestPooledDispatcher_Run_ReturnsSupervisorError(t *testing.T) {
	d, sv := createPooledDispatcher(t)

	result := &models.Result{State: models.StateTimedOut}

	sv.EXPECT().Run(mock.Anything, mock.Anything, mock.Anything).Return(result, models.ErrTimedOut)

	res, err := d.Run(context.Background(), launcher.Spec{Path: "true"}, supervisor.Options{})
	assert.ErrorIs(t, err, models.ErrTimedOut)
	assert.Same(t, result, res)
}

func TestPooledDispatcher_Run_ReusesSupervisor(t *testing.T) {
	sv := NewMockSupervisor(t)

	var created atomic.Int32
	d := createPooledDispatcherWithFactory(t, func(supervisor.Params) (supervisor.Supervisor, error) {
		created.Add(1)
		return sv, nil
	})

	sv.EXPECT().Run(mock.Anything, mock.Anything, mock.Anything).Return(&models.Result{}, nil).Times(3)

	for i := 0; i < 3; i++ {
		_, err := d.Run(context.Background(), launcher.Spec{Path: "true"}, supervisor.Options{})
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), created.Load())
}

func TestPooledDispatcher_Run_DestroysBusySupervisor(t *testing.T) {
	busy := NewMockSupervisor(t)
	fresh := NewMockSupervisor(t)

	var created atomic.Int32
	d := createPooledDispatcherWithFactory(t, func(supervisor.Params) (supervisor.Supervisor, error) {
		if created.Add(1) == 1 {
			return busy, nil
		}
		return fresh, nil
	})

	busy.EXPECT().Run(mock.Anything, mock.Anything, mock.Anything).Return(nil, models.ErrSupervisorBusy).Once()
	fresh.EXPECT().Run(mock.Anything, mock.Anything, mock.Anything).Return(&models.Result{}, nil).Once()

	_, err := d.Run(context.Background(), launcher.Spec{Path: "true"}, supervisor.Options{})
	assert.ErrorIs(t, err, models.ErrSupervisorBusy)

	_, err = d.Run(context.Background(), launcher.Spec{Path: "true"}, supervisor.Options{})
	assert.NoError(t, err)

	assert.Equal(t, int32(2), created.Load())
}

func TestPooledDispatcher_Run_FailsToCreateSupervisor(t *testing.T) {
	d := createPooledDispatcherWithFactory(t, func(supervisor.Params) (supervisor.Supervisor, error) {
		return nil, assert.AnError
	})

	_, err := d.Run(context.Background(), launcher.Spec{Path: "true"}, supervisor.Options{})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestPooledDispatcher_Run_WaitsForIdleSupervisor(t *testing.T) {
	d, sv := createPooledDispatcher(t)

	release := make(chan struct{})

	sv.EXPECT().Run(mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(&models.Result{}, nil)

	go d.Run(context.Background(), launcher.Spec{Path: "true"}, supervisor.Options{})

	// the only supervisor is taken, acquiring must honor the deadline
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := d.Run(ctx, launcher.Spec{Path: "true"}, supervisor.Options{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
}

func TestPooledDispatcher_Call_FailsToCreateSupervisor(t *testing.T) {
	d := createPooledDispatcherWithFactory(t, func(supervisor.Params) (supervisor.Supervisor, error) {
		return nil, assert.AnError
	})

	outcome, err := d.Call(context.Background(), "echo", nil, isolate.Options{})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, models.OutcomeWorkerDied, outcome.Kind)
}

func TestPooledDispatcher_Call_RunsWorkerOnSupervisor(t *testing.T) {
	d, sv := createPooledDispatcher(t)

	// a supervisor that fails to launch the worker
	launchErr := &models.LaunchError{Program: "worker", Op: "exec", Err: assert.AnError}

	sv.EXPECT().Run(mock.Anything, mock.MatchedBy(func(spec launcher.Spec) bool {
		return len(spec.ExtraFiles) == 2 && spec.FailureChannel
	}), mock.Anything).
		Run(func(args mock.Arguments) {
			for _, f := range args.Get(1).(launcher.Spec).ExtraFiles {
				f.Close()
			}
		}).
		Return(&models.Result{State: models.StateFailed, Reason: models.ReasonLaunch}, launchErr)

	outcome, err := d.Call(context.Background(), "echo", []byte("input"), isolate.Options{})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, models.OutcomeWorkerDied, outcome.Kind)
}

func TestPooledDispatcher_Shutdown_RejectsCalls(t *testing.T) {
	d, sv := createPooledDispatcher(t)

	sv.EXPECT().Run(mock.Anything, mock.Anything, mock.Anything).Return(&models.Result{}, nil).Once()

	_, err := d.Run(context.Background(), launcher.Spec{Path: "true"}, supervisor.Options{})
	require.NoError(t, err)

	require.NoError(t, d.Shutdown(context.Background()))

	_, err = d.Run(context.Background(), launcher.Spec{Path: "true"}, supervisor.Options{})
	assert.Error(t, err)
}

func TestPooledDispatcher_Shutdown_HonorsContext(t *testing.T) {
	d, sv := createPooledDispatcher(t)

	release := make(chan struct{})
	defer close(release)

	sv.EXPECT().Run(mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(&models.Result{}, nil)

	go d.Run(context.Background(), launcher.Spec{Path: "true"}, supervisor.Options{})
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, d.Shutdown(ctx), context.DeadlineExceeded)
}

// MARK: - helpers

func createPooledDispatcher(t *testing.T) (*dispatcher.PooledDispatcher, *MockSupervisor) {
	sv := NewMockSupervisor(t)

	d := createPooledDispatcherWithFactory(t, func(supervisor.Params) (supervisor.Supervisor, error) {
		return sv, nil
	})

	return d, sv
}

func createPooledDispatcherWithFactory(
	t *testing.T,
	factory dispatcher.SupervisorFactory,
) *dispatcher.PooledDispatcher {
	d, err := dispatcher.NewPooledDispatcher(dispatcher.PooledDispatcherParams{
		Config: dispatcher.PooledDispatcherConfig{
			MaxWorkers: 1,
		},
		SupervisorFactory: factory,
		Log:               zap.NewNop(),
	})
	require.NoError(t, err)

	return d
}
