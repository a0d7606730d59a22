package supervisor

import (
	"context"
	"errors"
	"time"

	"github.com/lambda-feedback/sysproc/internal/execution/launcher"
	"github.com/lambda-feedback/sysproc/internal/execution/models"
	"github.com/lambda-feedback/sysproc/internal/execution/mux"
	"github.com/lambda-feedback/sysproc/internal/metrics"
	"go.uber.org/zap"
)

type trigger int

const (
	triggerNone trigger = iota
	triggerTimeout
	triggerCancel
)

// call is the state machine of a single supervised child. Only its own
// loop mutates it.
type call struct {
	id      string
	state   models.State
	config  Config
	timeout time.Duration

	interrupt <-chan struct{}
	ctxDone   bool
	timedOut  bool

	// trigger is the first cause that started the ladder
	trigger trigger
	ladder  ladder

	started time.Time

	metrics metrics.Collector
	log     *zap.Logger
}

func (c *call) transition(next models.State) {
	if !c.state.CanTransition(next) {
		c.log.Error("illegal state transition",
			zap.Stringer("from", c.state),
			zap.Stringer("to", next),
		)
		return
	}

	c.log.Debug("state transition",
		zap.Stringer("from", c.state),
		zap.Stringer("to", next),
	)

	c.metrics.StateTransition(c.state, next)
	c.state = next
}

// launchFailed records a call whose child never started.
func (c *call) launchFailed(err error) (*models.Result, error) {
	res := &models.Result{
		ID:       c.id,
		ExitCode: -1,
		Err:      err,
	}

	switch {
	case errors.Is(err, models.ErrCancelled):
		c.transition(models.StateCancelled)
	case models.IsLaunchError(err):
		res.Reason = models.ReasonLaunch
		c.transition(models.StateFailed)
		c.metrics.LaunchFailed("launch")
	default:
		c.transition(models.StateFailed)
		c.metrics.LaunchFailed("resource")
	}

	res.State = c.state

	c.log.Info("launch failed", zap.Error(err))
	c.metrics.CallFinished(res.State, 0)

	return res, err
}

// supervise runs the tick loop until the child exited. Whatever happens,
// the deferred reclaim kills the process group and reaps the child.
func (c *call) supervise(ctx context.Context, h *launcher.Handle) (*models.Result, error) {
	defer h.Reclaim()

	c.started = h.Started()
	c.log = c.log.With(zap.Int("pid", h.Pid()))

	m := mux.New(h.Pipes(), c.log)
	defer m.Close()

	m.Watch(h.WakeFd())

	c.transition(models.StateRunning)

	var deadline time.Time
	if c.timeout > 0 {
		deadline = c.started.Add(c.timeout)
	}

	for {
		exited, err := h.Done()
		if err != nil {
			return c.finishLost(h, err)
		}

		if exited {
			// descendants must not outlive the call. The child is not
			// reaped yet, so its pid still holds the group id.
			if err := h.KillGroup(); err != nil {
				c.log.Debug("kill group failed", zap.Error(err))
			}

			if err := m.Flush(); err != nil {
				c.log.Warn("final drain failed", zap.Error(err))
			}

			status, err := h.Wait()
			if err != nil {
				return c.finishLost(h, err)
			}

			return c.finish(h, status, m)
		}

		now := time.Now()
		if fired := c.observe(ctx, now, deadline); c.trigger != triggerNone {
			c.escalate(h, now, fired)
		}

		if err := m.Drain(c.config.PollInterval); err != nil {
			c.log.Warn("drain failed", zap.Error(err))
			time.Sleep(c.config.PollInterval)
		}
	}
}

// observe checks the timeout and the cancellation sources. It reports
// whether a trigger fired during this tick.
func (c *call) observe(ctx context.Context, now time.Time, deadline time.Time) bool {
	fired := false

	if !c.timedOut && !deadline.IsZero() && !now.Before(deadline) {
		c.timedOut = true
		c.fire(triggerTimeout)
		fired = true
	}

	if !c.ctxDone && ctx.Err() != nil {
		c.ctxDone = true
		c.fire(triggerCancel)
		fired = true
	}

	if c.interrupt != nil {
		select {
		case _, ok := <-c.interrupt:
			if !ok {
				c.interrupt = nil
			}
			c.fire(triggerCancel)
			fired = true
		default:
		}
	}

	return fired
}

func (c *call) fire(t trigger) {
	if c.trigger == triggerNone {
		c.trigger = t
		c.log.Info("stopping child", zap.Bool("timeout", t == triggerTimeout))
	}
}

// escalate sends the signal of the current rung if it is due. Delivery
// failures are ignored: the child may already be gone.
func (c *call) escalate(h *launcher.Handle, now time.Time, repeated bool) {
	rung, due := c.ladder.step(now, repeated)
	if !due {
		return
	}

	sig, group := rung.signal()

	log := c.log.With(
		zap.Stringer("rung", rung),
		zap.Int("attempt", c.ladder.attempts),
	)
	log.Debug("escalating")

	var err error
	if group {
		err = h.KillGroup()
	} else {
		err = h.Signal(sig)
	}

	if err != nil {
		log.Debug("signal delivery failed", zap.Error(err))
	}

	c.metrics.Escalation(rung.String())
}

// finish classifies a reaped child. A report on the failure channel wins,
// then the cause that started the ladder, then the exit status.
func (c *call) finish(h *launcher.Handle, status launcher.ExitStatus, m *mux.Mux) (*models.Result, error) {
	res := &models.Result{
		ID:          c.id,
		Pid:         h.Pid(),
		ExitCode:    status.Code,
		Signal:      status.Signal,
		Escalations: c.ladder.attempts,
		Duration:    time.Since(c.started),
	}

	if launchErr := h.LaunchFailure(c.config.FailureWait); launchErr != nil {
		res.Reason = models.ReasonLaunch
		res.Err = launchErr
		c.transition(models.StateFailed)
		c.metrics.LaunchFailed("setup")
	} else {
		switch {
		case c.trigger == triggerTimeout:
			res.Err = models.ErrTimedOut
			c.transition(models.StateTimedOut)
		case c.trigger == triggerCancel:
			res.Err = models.ErrCancelled
			c.transition(models.StateCancelled)
		case status.Signaled():
			res.Reason = models.ReasonSignal
			res.Err = &models.SignalError{Signal: status.Signal}
			c.transition(models.StateFailed)
		default:
			c.transition(models.StateSucceeded)
		}
	}

	res.State = c.state

	c.log.Info("call finished",
		zap.Stringer("state", res.State),
		zap.Int("exit_code", res.ExitCode),
		zap.Int("signal", res.Signal),
		zap.Int("escalations", res.Escalations),
		zap.Duration("duration", res.Duration),
		zap.Error(m.Err()),
	)

	c.metrics.CallFinished(res.State, res.Duration)

	return res, res.Err
}

// finishLost handles a child that can no longer be waited for.
func (c *call) finishLost(h *launcher.Handle, err error) (*models.Result, error) {
	c.log.Error("lost track of child", zap.Error(err))

	res := &models.Result{
		ID:          c.id,
		Pid:         h.Pid(),
		ExitCode:    -1,
		Escalations: c.ladder.attempts,
		Duration:    time.Since(c.started),
		Err:         &models.ResourceError{Op: "wait", Err: err},
	}

	c.transition(models.StateFailed)
	res.State = c.state

	c.metrics.CallFinished(res.State, res.Duration)

	return res, res.Err
}
