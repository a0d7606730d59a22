package dispatcher_test

import (
	"context"

	"github.com/lambda-feedback/sysproc/internal/execution/launcher"
	"github.com/lambda-feedback/sysproc/internal/execution/models"
	"github.com/lambda-feedback/sysproc/internal/execution/supervisor"
	"github.com/stretchr/testify/mock"
)

// MockSupervisor is a mock type for the supervisor.Supervisor type
type MockSupervisor struct {
	mock.Mock
}

var _ supervisor.Supervisor = (*MockSupervisor)(nil)

type MockSupervisor_Expecter struct {
	mock *mock.Mock
}

func (_m *MockSupervisor) EXPECT() *MockSupervisor_Expecter {
	return &MockSupervisor_Expecter{mock: &_m.Mock}
}

// Run provides a mock function with given fields: ctx, spec, opts
func (_m *MockSupervisor) Run(ctx context.Context, spec launcher.Spec, opts supervisor.Options) (*models.Result, error) {
	ret := _m.Called(ctx, spec, opts)

	var r0 *models.Result
	if rf, ok := ret.Get(0).(func(context.Context, launcher.Spec, supervisor.Options) *models.Result); ok {
		r0 = rf(ctx, spec, opts)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Result)
	}

	return r0, ret.Error(1)
}

func (_e *MockSupervisor_Expecter) Run(ctx interface{}, spec interface{}, opts interface{}) *mock.Call {
	return _e.mock.On("Run", ctx, spec, opts)
}

// Spawn provides a mock function with given fields: ctx, spec
func (_m *MockSupervisor) Spawn(ctx context.Context, spec launcher.Spec) (*supervisor.Background, error) {
	ret := _m.Called(ctx, spec)

	var r0 *supervisor.Background
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*supervisor.Background)
	}

	return r0, ret.Error(1)
}

func (_e *MockSupervisor_Expecter) Spawn(ctx interface{}, spec interface{}) *mock.Call {
	return _e.mock.On("Spawn", ctx, spec)
}

// Config provides a mock function with no fields
func (_m *MockSupervisor) Config() supervisor.Config {
	ret := _m.Called()
	return ret.Get(0).(supervisor.Config)
}

func (_e *MockSupervisor_Expecter) Config() *mock.Call {
	return _e.mock.On("Config")
}

// NewMockSupervisor creates a new instance of MockSupervisor. It also
// registers a testing interface on the mock and a cleanup function to
// assert the mocks expectations.
func NewMockSupervisor(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSupervisor {
	m := &MockSupervisor{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
