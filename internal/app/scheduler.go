/**
 * @description
 * Cron scheduler setup for the daily expiry sweep.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron     *cron.Cron
	jobs     *Jobs
	logger   *slog.Logger
	schedule string
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, logger *slog.Logger, sweepSchedule string) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:     c,
		jobs:     jobs,
		logger:   logger,
		schedule: sweepSchedule,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.schedule, s.jobs.ProcessSubscriptionExpiry); err != nil {
		s.logger.Error("failed to schedule expiry sweep", "error", err)
	} else {
		s.logger.Info("scheduled expiry sweep", "schedule", s.schedule)
	}

	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
