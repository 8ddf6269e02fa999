package usecase

import (
	"context"
	"log/slog"
	"time"

	"FormationsCache/internal/logging"
	"FormationsCache/internal/ports"
)

// Scheduler wires the interval driver with the ingestion pipeline.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *IngestPipeline
	timeout  time.Duration
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring scrapes. A positive
// timeout bounds each run.
func NewScheduler(driver ports.Scheduler, pipeline *IngestPipeline, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scheduler{driver: driver, pipeline: pipeline, timeout: timeout, logger: logger}
}

// Start registers the pipeline with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		runCtx := ctx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		if _, err := s.pipeline.Run(runCtx, trigger); err != nil {
			s.logger.Error("scheduled scrape failed", "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
