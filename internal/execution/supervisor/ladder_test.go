package supervisor

import (
	"testing"
	"time"

	"github.com/lambda-feedback/sysproc/internal/execution/launcher"
	"github.com/stretchr/testify/assert"
)

func TestLadder_StartsPolite(t *testing.T) {
	l := newLadder(time.Second)
	now := time.Now()

	rung, due := l.step(now, false)
	assert.True(t, due)
	assert.Equal(t, RungInterrupt, rung)
	assert.Equal(t, 1, l.attempts)
}

func TestLadder_WaitsForGrace(t *testing.T) {
	l := newLadder(time.Second)
	now := time.Now()

	l.step(now, false)

	rung, due := l.step(now.Add(500*time.Millisecond), false)
	assert.False(t, due)
	assert.Equal(t, RungInterrupt, rung)

	rung, due = l.step(now.Add(time.Second), false)
	assert.True(t, due)
	assert.Equal(t, RungTerminate, rung)

	rung, due = l.step(now.Add(2*time.Second), false)
	assert.True(t, due)
	assert.Equal(t, RungKill, rung)
}

func TestLadder_RepeatedTriggerAdvances(t *testing.T) {
	l := newLadder(time.Hour)
	now := time.Now()

	l.step(now, true)

	rung, due := l.step(now, true)
	assert.True(t, due)
	assert.Equal(t, RungTerminate, rung)

	rung, due = l.step(now, true)
	assert.True(t, due)
	assert.Equal(t, RungKill, rung)
}

func TestLadder_KillIsResent(t *testing.T) {
	l := newLadder(100 * time.Millisecond)
	now := time.Now()

	for i := 0; i < 3; i++ {
		l.step(now, true)
	}
	assert.Equal(t, RungKill, l.rung)

	rung, due := l.step(now.Add(50*time.Millisecond), false)
	assert.False(t, due)
	assert.Equal(t, RungKill, rung)

	rung, due = l.step(now.Add(100*time.Millisecond), false)
	assert.True(t, due)
	assert.Equal(t, RungKill, rung)
	assert.Equal(t, 4, l.attempts)
}

func TestRung_Signal(t *testing.T) {
	sig, group := RungInterrupt.signal()
	assert.Equal(t, launcher.Interrupt, sig)
	assert.False(t, group)

	sig, group = RungTerminate.signal()
	assert.Equal(t, launcher.Terminate, sig)
	assert.False(t, group)

	sig, group = RungKill.signal()
	assert.Equal(t, launcher.Kill, sig)
	assert.True(t, group)
}
