// Package schedule runs recurring background tasks on cron expressions.
package schedule

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Task is one unit of scheduled work. The context is cancelled when the
// scheduler stops.
type Task func(ctx context.Context)

// Scheduler wraps a seconds-resolution cron runner. Tasks registered before
// Start never fire until Start, and a stopped scheduler drops ticks instead
// of running tasks late.
type Scheduler struct {
	cron    *cron.Cron
	running atomic.Bool
	logger  *zap.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New builds an idle scheduler. A nil logger defaults to nop.
func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// taskContext returns the context tasks of the current run should observe.
func (s *Scheduler) taskContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// Add registers task under a six-field cron expression (seconds first).
func (s *Scheduler) Add(spec string, task Task) (cron.EntryID, error) {
	return s.cron.AddFunc(spec, func() {
		if !s.running.Load() {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("scheduled task panicked", zap.Any("panic", r))
			}
		}()
		task(s.taskContext())
	})
}

// Start begins firing scheduled tasks. Starting again after Stop resumes
// the registered entries under a fresh task context.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}
	s.mu.Unlock()
	s.running.Store(true)
	s.cron.Start()
}

// Stop halts scheduling, cancels the task context and waits for running
// tasks to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.running.Store(false)
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
