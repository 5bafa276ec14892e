// AngelaMos | 2026
// scheduler.go

package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/carterperez-dev/templates/notes-api/internal/config"
)

// Task is one idempotent housekeeping job. It reports how many rows it
// removed.
type Task struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

// Purger is implemented by the session service.
type Purger interface {
	PurgeExpiredRefreshTokens(ctx context.Context) (int64, error)
	PurgeExpiredRevocations(ctx context.Context) (int64, error)
}

func PurgeTasks(p Purger) []Task {
	return []Task{
		{Name: "purge_refresh_tokens", Run: p.PurgeExpiredRefreshTokens},
		{Name: "purge_revocations", Run: p.PurgeExpiredRevocations},
	}
}

type Scheduler struct {
	cron    *cron.Cron
	tasks   []Task
	timeout time.Duration
	logger  *slog.Logger
	running sync.Mutex
}

func NewScheduler(
	cfg config.MaintenanceConfig,
	logger *slog.Logger,
	tasks ...Task,
) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	s := &Scheduler{
		cron:    cron.New(),
		tasks:   tasks,
		timeout: timeout,
		logger:  logger,
	}

	if _, err := s.cron.AddFunc(cfg.Schedule, func() {
		s.RunOnce(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("schedule maintenance %q: %w", cfg.Schedule, err)
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("maintenance scheduler started", "tasks", len(s.tasks))
}

// Stop halts scheduling and waits for a run in progress, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()

	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("maintenance run still in progress at shutdown")
	}
}

// RunOnce runs every task in order. A failing task is logged and does not
// stop the ones after it. Overlapping runs are skipped.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if !s.running.TryLock() {
		s.logger.Warn("maintenance run skipped, previous run still active")
		return
	}
	defer s.running.Unlock()

	for _, task := range s.tasks {
		s.runTask(ctx, task)
	}
}

func (s *Scheduler) runTask(ctx context.Context, task Task) {
	taskCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	deleted, err := task.Run(taskCtx)
	if err != nil {
		s.logger.Error("maintenance task failed",
			"task", task.Name,
			"error", err,
		)
		return
	}

	s.logger.Info("maintenance task completed",
		"task", task.Name,
		"deleted", deleted,
		"duration", time.Since(start),
	)
}
