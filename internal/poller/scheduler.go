package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Task is a periodic callback owned by a Scheduler.
type Task struct {
	Name     string
	Interval time.Duration
	// Immediate runs the callback once at start instead of waiting for the
	// first interval.
	Immediate bool
	Run       func(ctx context.Context)
}

// Scheduler runs a set of periodic tasks under a single cancellation token.
// Runs of one task never overlap: a tick that arrives while the previous
// run is still in flight is dropped.
type Scheduler struct {
	logger *zap.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	group     *errgroup.Group
	cancelled bool
}

// NewScheduler creates an idle scheduler.
func NewScheduler(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{logger: logger}
}

// Start tears down any running tasks, then starts tasks under a context
// derived from parent.
// Start and Stop must not race each other; Cancel may be called from anywhere.
func (s *Scheduler) Start(parent context.Context, tasks ...Task) {
	s.Stop()

	ctx, cancel := context.WithCancel(parent)
	g, gctx := errgroup.WithContext(ctx)

	// Published before any task runs so a task may Cancel on its first run.
	s.mu.Lock()
	s.cancel = cancel
	s.group = g
	s.cancelled = false
	s.mu.Unlock()

	for _, t := range tasks {
		if t.Run == nil || t.Interval <= 0 {
			continue
		}
		g.Go(func() error {
			runTask(gctx, t)
			return nil
		})
	}

	s.logger.Debug("scheduler started", zap.Int("tasks", len(tasks)))
}

// Cancel signals every task to stop without waiting. It is safe to call
// from inside a task.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	if cancel != nil {
		s.cancelled = true
	}
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Stop cancels every task and waits for in-flight runs to return. After
// Stop returns no task callback is running or will run. Stop is idempotent
// and must not be called from inside a task.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, g := s.cancel, s.group
	s.cancel, s.group = nil, nil
	s.cancelled = false
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	_ = g.Wait()
	s.logger.Debug("scheduler stopped")
}

// Running reports whether tasks were started and neither cancelled nor
// stopped since.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil && !s.cancelled
}

func runTask(ctx context.Context, t Task) {
	if t.Immediate {
		t.Run(ctx)
	}

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			t.Run(ctx)
		}
	}
}
