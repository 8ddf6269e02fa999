package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestIntervalSchedulerRunsImmediatelyAndOnTick(t *testing.T) {
	s := NewIntervalScheduler(10 * time.Millisecond)

	var runs atomic.Int32
	require.NoError(t, s.Start(context.Background(), func(time.Time) { runs.Add(1) }))

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "job must not run after Stop")
}

func TestIntervalSchedulerDoubleStartIsNoop(t *testing.T) {
	s := NewIntervalScheduler(time.Hour)

	var runs atomic.Int32
	job := func(time.Time) { runs.Add(1) }
	require.NoError(t, s.Start(context.Background(), job))
	require.NoError(t, s.Start(context.Background(), job))

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, int32(1), runs.Load())
}

func TestIntervalSchedulerStopsOnContextCancel(t *testing.T) {
	s := NewIntervalScheduler(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	require.NoError(t, s.Start(ctx, func(time.Time) { close(started) }))
	<-started
	cancel()

	require.NoError(t, s.Stop(context.Background()))
}

func TestIntervalSchedulerDefaults(t *testing.T) {
	assert.Equal(t, 6*time.Hour, NewIntervalScheduler(0).interval)
	assert.NoError(t, NewIntervalScheduler(time.Second).Start(context.Background(), nil))
}
