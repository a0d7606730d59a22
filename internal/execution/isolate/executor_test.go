//go:build unix

package isolate_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/lambda-feedback/sysproc/internal/execution/isolate"
	"github.com/lambda-feedback/sysproc/internal/execution/models"
	"github.com/lambda-feedback/sysproc/internal/execution/supervisor"
	"github.com/lambda-feedback/sysproc/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

func init() {
	isolate.Register("test.echo", func(_ context.Context, input []byte) ([]byte, error) {
		return input, nil
	})
	isolate.Register("test.fail", func(context.Context, []byte) ([]byte, error) {
		return nil, errors.New("work failed")
	})
	isolate.Register("test.panic", func(context.Context, []byte) ([]byte, error) {
		panic("work panicked")
	})
	isolate.Register("test.crash", func(context.Context, []byte) ([]byte, error) {
		unix.Kill(os.Getpid(), unix.SIGKILL)
		select {}
	})
	isolate.Register("test.truncate", func(context.Context, []byte) ([]byte, error) {
		// a marker and half a length, then death
		os.NewFile(4, "result").Write([]byte{0, 0, 0, 0, 0, 0, 0})
		unix.Kill(os.Getpid(), unix.SIGKILL)
		select {}
	})
	isolate.Register("test.cooperative", func(ctx context.Context, _ []byte) ([]byte, error) {
		<-ctx.Done()
		return []byte("stopped"), nil
	})
	isolate.Register("test.stubborn", func(context.Context, []byte) ([]byte, error) {
		time.Sleep(time.Minute)
		return nil, nil
	})
	isolate.Register("test.stdout", func(_ context.Context, input []byte) ([]byte, error) {
		os.Stdout.Write(input)
		return nil, nil
	})
}

func TestMain(m *testing.M) {
	if isolate.Init() {
		return
	}
	os.Exit(m.Run())
}

func TestCall_Ok(t *testing.T) {
	outcome, err := newExecutor().Call(context.Background(), "test.echo", []byte("payload"), isolate.Options{})
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeOk, outcome.Kind)
	assert.Equal(t, "payload", string(outcome.Payload))
}

func TestCall_LargePayload(t *testing.T) {
	input := bytes.Repeat([]byte("0123456789abcdef"), 1<<20)

	outcome, err := newExecutor().Call(context.Background(), "test.echo", input, isolate.Options{})
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeOk, outcome.Kind)
	assert.True(t, bytes.Equal(input, outcome.Payload))
}

func TestCall_Err(t *testing.T) {
	outcome, err := newExecutor().Call(context.Background(), "test.fail", nil, isolate.Options{})
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeErr, outcome.Kind)
	assert.Equal(t, "work failed", string(outcome.Payload))
}

func TestCall_Panic(t *testing.T) {
	outcome, err := newExecutor().Call(context.Background(), "test.panic", nil, isolate.Options{})
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeErr, outcome.Kind)
	assert.Equal(t, "panic: work panicked", string(outcome.Payload))
}

func TestCall_Crash(t *testing.T) {
	outcome, err := newExecutor().Call(context.Background(), "test.crash", nil, isolate.Options{})

	assert.Equal(t, models.OutcomeWorkerDied, outcome.Kind)
	assert.ErrorIs(t, err, models.ErrWorkerDied)
	assert.ErrorIs(t, err, isolate.ErrNoMarker)

	var sigErr *models.SignalError
	assert.ErrorAs(t, err, &sigErr)
}

func TestCall_TruncatedResult(t *testing.T) {
	outcome, err := newExecutor().Call(context.Background(), "test.truncate", nil, isolate.Options{})

	assert.Equal(t, models.OutcomeWorkerDied, outcome.Kind)
	assert.Nil(t, outcome.Payload)
	assert.ErrorIs(t, err, models.ErrWorkerDied)
	assert.ErrorIs(t, err, isolate.ErrTruncated)
}

func TestCall_UnknownWork(t *testing.T) {
	outcome, err := newExecutor().Call(context.Background(), "test.missing", nil, isolate.Options{})

	assert.Equal(t, models.OutcomeWorkerDied, outcome.Kind)

	var launchErr *models.LaunchError
	require.ErrorAs(t, err, &launchErr)
	assert.Equal(t, int(isolate.FailureUnknownWork), launchErr.Code)
	assert.Contains(t, launchErr.Error(), "test.missing")
}

func TestCall_TimeoutCooperative(t *testing.T) {
	outcome, err := newExecutor().Call(context.Background(), "test.cooperative", nil, isolate.Options{
		Timeout: 200 * time.Millisecond,
	})

	assert.Equal(t, models.OutcomeWorkerDied, outcome.Kind)
	assert.ErrorIs(t, err, models.ErrTimedOut)
	assert.ErrorIs(t, err, models.ErrWorkerDied)
}

func TestCall_TimeoutStubborn(t *testing.T) {
	start := time.Now()

	outcome, err := newExecutor().Call(context.Background(), "test.stubborn", nil, isolate.Options{
		Timeout: 200 * time.Millisecond,
	})

	assert.Equal(t, models.OutcomeWorkerDied, outcome.Kind)
	assert.ErrorIs(t, err, models.ErrTimedOut)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCall_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	outcome, err := newExecutor().Call(ctx, "test.stubborn", nil, isolate.Options{})

	assert.Equal(t, models.OutcomeWorkerDied, outcome.Kind)
	assert.ErrorIs(t, err, models.ErrCancelled)
}

func TestCall_CapturesStdout(t *testing.T) {
	var stdout bytes.Buffer

	_, err := newExecutor().Call(context.Background(), "test.stdout", []byte("printed"), isolate.Options{
		Stdout: &stdout,
	})
	require.NoError(t, err)

	assert.Equal(t, "printed", stdout.String())
}

func TestCall_InputTooLarge(t *testing.T) {
	exec := isolate.NewExecutor(isolate.Params{
		Supervisor: newSupervisor(),
		MaxPayload: 4,
		Log:        zap.NewNop(),
	})

	_, err := exec.Call(context.Background(), "test.echo", []byte("too large"), isolate.Options{})
	assert.ErrorIs(t, err, isolate.ErrPayloadTooLarge)
}

func TestCall_DoesNotLeak(t *testing.T) {
	exec := newExecutor()

	_, err := exec.Call(context.Background(), "test.echo", []byte("warm up"), isolate.Options{})
	require.NoError(t, err)

	before := util.OpenDescriptors()

	for i := 0; i < 20; i++ {
		outcome, err := exec.Call(context.Background(), "test.echo", []byte("x"), isolate.Options{})
		require.NoError(t, err)
		require.Equal(t, "x", string(outcome.Payload))
	}

	assert.Eventually(t, func() bool {
		return util.OpenDescriptors() == before
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRegistered(t *testing.T) {
	names := isolate.Registered()

	assert.Contains(t, names, "test.echo")
	assert.True(t, strings.Compare(names[0], names[len(names)-1]) <= 0)
}

func TestRegister_Duplicate(t *testing.T) {
	assert.Panics(t, func() {
		isolate.Register("test.echo", nil)
	})
}

// MARK: - helpers

func newSupervisor() *supervisor.ProcessSupervisor {
	return supervisor.New(supervisor.Params{
		Config: supervisor.Config{
			PollInterval: 20 * time.Millisecond,
			Grace:        100 * time.Millisecond,
		},
		Log: zap.NewNop(),
	})
}

func newExecutor() *isolate.Executor {
	return isolate.NewExecutor(isolate.Params{
		Supervisor: newSupervisor(),
		Log:        zap.NewNop(),
	})
}
