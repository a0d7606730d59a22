package dispatcher

import (
	"context"

	"github.com/lambda-feedback/sysproc/internal/execution/isolate"
	"github.com/lambda-feedback/sysproc/internal/execution/launcher"
	"github.com/lambda-feedback/sysproc/internal/execution/models"
	"github.com/lambda-feedback/sysproc/internal/execution/supervisor"
)

type Dispatcher interface {
	// Run runs a command on an idle supervisor and returns its result
	Run(context.Context, launcher.Spec, supervisor.Options) (*models.Result, error)

	// Call runs registered work in an isolated worker on an idle supervisor
	Call(ctx context.Context, name string, input []byte, opts isolate.Options) (models.Outcome, error)

	// Shutdown rejects new calls and waits for running calls to finish.
	Shutdown(context.Context) error
}

type SupervisorFactory func(supervisor.Params) (supervisor.Supervisor, error)

func defaultSupervisorFactory(params supervisor.Params) (supervisor.Supervisor, error) {
	return supervisor.New(params), nil
}
