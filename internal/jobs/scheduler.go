package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Scheduler periodically enqueues the recurring maintenance tasks.
type Scheduler interface {
	RegisterTasks() error
	Run()
	Shutdown()
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	log            *slog.Logger
}

// NewScheduler constructs a Scheduler on top of asynq's cron scheduler.
func NewScheduler(redisOpt asynq.RedisConnOpt, log *slog.Logger) Scheduler {
	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, nil),
		log:            log,
	}
}

func (s *scheduler) RegisterTasks() error {
	cleanup, err := NewApprovalCleanupTask()
	if err != nil {
		return err
	}
	if _, err := s.asynqScheduler.Register("@every 1h", cleanup); err != nil {
		return err
	}

	audit, err := NewSessionAuditTask()
	if err != nil {
		return err
	}
	if _, err := s.asynqScheduler.Register("@every 30m", audit); err != nil {
		return err
	}

	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: registered maintenance tasks")
	}

	return nil
}

func (s *scheduler) Run() {
	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: starting")
	}

	go func() {
		if err := s.asynqScheduler.Run(); err != nil && s.log != nil {
			s.log.ErrorContext(context.Background(), "scheduler: run failed", "error", err)
		}
	}()
}

func (s *scheduler) Shutdown() {
	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: shutting down")
	}

	s.asynqScheduler.Shutdown()
}
