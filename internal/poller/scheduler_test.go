package poller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSchedulerRunsImmediateTaskAndTicks(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	var n atomic.Int32

	s.Start(context.Background(), Task{
		Name:      "tick",
		Interval:  5 * time.Millisecond,
		Immediate: true,
		Run:       func(context.Context) { n.Add(1) },
	})
	require.True(t, s.Running())
	require.Eventually(t, func() bool { return n.Load() >= 3 }, time.Second, time.Millisecond)

	s.Stop()
	assert.False(t, s.Running())
	after := n.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, n.Load(), "task ran after Stop")
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	s := NewScheduler(nil)
	s.Stop()
	s.Start(context.Background(), Task{Name: "noop", Interval: time.Millisecond, Run: func(context.Context) {}})
	s.Stop()
	s.Stop()
	assert.False(t, s.Running())
}

func TestSchedulerCancelFromInsideTask(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	var n atomic.Int32

	s.Start(context.Background(), Task{
		Name:      "once",
		Interval:  time.Millisecond,
		Immediate: true,
		Run: func(context.Context) {
			n.Add(1)
			s.Cancel()
		},
	})
	require.Eventually(t, func() bool { return !s.Running() }, time.Second, time.Millisecond, "cancelled scheduler still reports running")

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after in-task Cancel")
	}
	assert.Equal(t, int32(1), n.Load())
}

func TestSchedulerDropsTicksWhileBusy(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	var running, overlaps atomic.Int32

	s.Start(context.Background(), Task{
		Name:     "slow",
		Interval: time.Millisecond,
		Run: func(ctx context.Context) {
			if running.Add(1) > 1 {
				overlaps.Add(1)
			}
			defer running.Add(-1)
			select {
			case <-ctx.Done():
			case <-time.After(10 * time.Millisecond):
			}
		},
	})
	time.Sleep(50 * time.Millisecond)
	s.Stop()
	assert.Zero(t, overlaps.Load())
}

func TestSchedulerSkipsInvalidTasks(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	s.Start(context.Background(),
		Task{Name: "no-run", Interval: time.Millisecond},
		Task{Name: "no-interval", Run: func(context.Context) { t.Error("should not run") }},
	)
	time.Sleep(5 * time.Millisecond)
	s.Stop()
}

func TestSchedulerRestartReplacesTasks(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	var first, second atomic.Int32

	s.Start(context.Background(), Task{Name: "a", Interval: time.Millisecond, Immediate: true, Run: func(context.Context) { first.Add(1) }})
	require.Eventually(t, func() bool { return first.Load() > 0 }, time.Second, time.Millisecond)

	s.Start(context.Background(), Task{Name: "b", Interval: time.Millisecond, Immediate: true, Run: func(context.Context) { second.Add(1) }})
	stopped := first.Load()
	require.Eventually(t, func() bool { return second.Load() > 2 }, time.Second, time.Millisecond)
	assert.Equal(t, stopped, first.Load())
	s.Stop()
}
