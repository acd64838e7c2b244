package scheduler

import (
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_InvalidSpec(t *testing.T) {
	s := New(slog.Default())

	err := s.Register(Job{Name: "bad", Spec: "not a cron spec", Run: func() {}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "register job bad")
}

func TestScheduler_RunsAndStopsGracefully(t *testing.T) {
	s := New(slog.Default())

	var runs atomic.Int64
	require.NoError(t, s.Register(Job{
		Name: "tick",
		Spec: "@every 100ms",
		Run:  func() { runs.Add(1) },
	}))

	s.Start()

	assert.Eventually(t, func() bool {
		return runs.Load() >= 2
	}, 2*time.Second, 20*time.Millisecond)

	s.Stop()
	after := runs.Load()

	// No further runs after Stop returns.
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}

func TestScheduler_StopWaitsForInflightJob(t *testing.T) {
	s := New(slog.Default())

	started := make(chan struct{})
	var finished atomic.Bool

	require.NoError(t, s.Register(Job{
		Name: "slow",
		Spec: "@every 50ms",
		Run: func() {
			select {
			case started <- struct{}{}:
			default:
			}
			time.Sleep(200 * time.Millisecond)
			finished.Store(true)
		},
	}))

	s.Start()
	<-started
	s.Stop()

	assert.True(t, finished.Load(), "Stop must wait for the running job")
}

func TestScheduler_RecoversFromPanic(t *testing.T) {
	s := New(slog.Default())

	var after atomic.Bool
	require.NoError(t, s.Register(Job{
		Name: "panics",
		Spec: "@every 50ms",
		Run: func() {
			if !after.Load() {
				after.Store(true)
				panic("boom")
			}
		},
	}))

	s.Start()
	defer s.Stop()

	// The panic on the first run must not kill the scheduler.
	assert.Eventually(t, after.Load, 2*time.Second, 20*time.Millisecond)
	time.Sleep(120 * time.Millisecond)
}
