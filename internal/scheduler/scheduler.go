// Package scheduler runs the worker's periodic maintenance tasks: the
// rental expiry sweep and queue depth sampling.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/openstreamhub/streamgate/internal/logging"
)

// Task is one periodic maintenance job
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs registered tasks on their intervals until stopped
type Scheduler struct {
	tasks  []Task
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *logging.Logger
}

// New creates a scheduler
func New(logger *logging.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Register adds a task. Must be called before Start.
func (s *Scheduler) Register(task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
}

// Start launches one goroutine per task. Each task runs once immediately,
// then on its interval.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.runLoop(task)
	}
	s.logger.Infof("scheduler started with %d tasks", len(s.tasks))
}

// Stop cancels all tasks and waits for them to finish
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runLoop(task Task) {
	defer s.wg.Done()

	s.runOnce(task)

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(task)
		}
	}
}

func (s *Scheduler) runOnce(task Task) {
	if err := task.Run(s.ctx); err != nil {
		s.logger.WithField("task", task.Name).ErrorWithErr("task failed", err)
	}
}
