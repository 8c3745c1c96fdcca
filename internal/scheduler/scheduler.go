// Package scheduler runs the service's periodic background work.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/weather-cache-service/internal/observability"
	"github.com/go-co-op/gocron"
)

// Job is one unit of scheduled work. A returned error is logged and counted;
// the job is retried only at its next scheduled run.
type Job func(ctx context.Context) error

// Scheduler owns the gocron scheduler and the context jobs run under.
type Scheduler struct {
	cron    *gocron.Scheduler
	logger  *slog.Logger
	metrics *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Scheduler on UTC.
func New(logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    gocron.NewScheduler(time.UTC),
		logger:  logger,
		metrics: metrics,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Every runs job each interval, starting when the scheduler starts. A run that
// outlasts the interval is not overlapped by the next tick.
func (s *Scheduler) Every(name string, interval, timeout time.Duration, job Job) error {
	if interval <= 0 {
		return fmt.Errorf("schedule %s: interval must be positive", name)
	}
	_, err := s.cron.Every(interval).SingletonMode().Tag(name).Do(s.run, name, timeout, job)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

// Daily runs job once a day at the UTC wall-clock time at ("HH:MM").
func (s *Scheduler) Daily(name, at string, timeout time.Duration, job Job) error {
	_, err := s.cron.Every(1).Day().At(at).SingletonMode().Tag(name).Do(s.run, name, timeout, job)
	if err != nil {
		return fmt.Errorf("schedule %s at %s: %w", name, at, err)
	}
	return nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler starting", "jobs", len(s.cron.Jobs()))
	s.cron.StartAsync()
}

// Stop cancels running jobs and stops future runs.
func (s *Scheduler) Stop() {
	s.cancel()
	s.cron.Stop()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(name string, timeout time.Duration, job Job) {
	ctx := s.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := job(ctx)
	elapsed := time.Since(start)
	s.metrics.JobDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	if err != nil {
		s.metrics.JobRuns.WithLabelValues(name, "error").Inc()
		s.logger.Error("scheduled job failed", "job", name, "duration", elapsed, "error", err)
		return
	}
	s.metrics.JobRuns.WithLabelValues(name, "success").Inc()
	s.logger.Debug("scheduled job finished", "job", name, "duration", elapsed)
}
