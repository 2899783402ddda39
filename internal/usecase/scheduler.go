package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"NewsBriefing/internal/ports"
)

// Job is one recurring unit of work.
type Job struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler wires the cron driver with the pipeline jobs.
type Scheduler struct {
	driver ports.Scheduler
	jobs   []Job
	logger *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, logger *slog.Logger, jobs ...Job) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{driver: driver, jobs: jobs, logger: logger}
}

// Start registers every job with the driver and starts it.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	for _, job := range s.jobs {
		if job.Spec == "" {
			s.logger.Info("job disabled", "job", job.Name)
			continue
		}
		if err := s.driver.Add(job.Spec, job.Name, s.wrap(job)); err != nil {
			return fmt.Errorf("schedule %s: %w", job.Name, err)
		}
	}

	return s.driver.Start(ctx)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

func (s *Scheduler) wrap(job Job) func(context.Context, time.Time) {
	return func(ctx context.Context, trigger time.Time) {
		if job.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, job.Timeout)
			defer cancel()
		}

		start := time.Now()
		if err := job.Run(ctx); err != nil {
			s.logger.Error("job failed", "job", job.Name, "trigger", trigger, "duration", time.Since(start), "error", err)
			return
		}
		s.logger.Info("job finished", "job", job.Name, "trigger", trigger, "duration", time.Since(start))
	}
}
