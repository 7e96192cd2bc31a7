package core

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsImmediately(t *testing.T) {
	ran := make(chan struct{}, 1)
	s := NewScheduler(func(context.Context) { ran <- struct{}{} }, time.Hour)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("first cycle did not run on start")
	}
	assert.False(t, s.LastTrigger().IsZero())
	next := s.NextRun()
	assert.WithinDuration(t, time.Now().Add(time.Hour), next, 5*time.Second)
	assert.Equal(t, time.Hour, s.Interval())
}

func TestSchedulerSkipsTicksWhileRunning(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 4)
	var runs int32
	s := NewScheduler(func(context.Context) {
		atomic.AddInt32(&runs, 1)
		started <- struct{}{}
		<-release
	}, time.Hour)

	require.True(t, s.trigger())
	<-started
	assert.Equal(t, StateRunning, s.State())

	assert.False(t, s.trigger())
	assert.False(t, s.trigger())
	assert.Equal(t, 2, s.Skipped())

	close(release)
	require.Eventually(t, func() bool { return s.State() == StateIdle }, 2*time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(&runs), "skipped ticks are not queued")

	require.True(t, s.trigger())
	<-started
	s.Stop()
	assert.EqualValues(t, 2, atomic.LoadInt32(&runs))
}

func TestSchedulerStopWaitsForRunningCycle(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool
	s := NewScheduler(func(ctx context.Context) {
		close(started)
		time.Sleep(100 * time.Millisecond)
		finished.Store(ctx.Err() == nil)
	}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	<-started
	cancel()

	s.Stop()
	assert.True(t, finished.Load(), "cycle finished with a live context before Stop returned")
	assert.Equal(t, StateStopped, s.State())
	assert.True(t, s.NextRun().IsZero())
	assert.False(t, s.trigger(), "ticks after stop are ignored")
}

func TestSchedulerStartTwice(t *testing.T) {
	s := NewScheduler(func(context.Context) {}, time.Hour)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerStarted)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopped", StateStopped.String())
}
