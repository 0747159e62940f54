package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/allisson/tenantkeys/internal/errors"
)

// SchedulerConfig configures the background rotation loop.
type SchedulerConfig struct {
	Interval time.Duration
}

// RotationScheduler runs ProcessAutomaticRotations for every site on a fixed interval.
type RotationScheduler struct {
	config    SchedulerConfig
	lifecycle LifecycleUseCase
	logger    *slog.Logger
}

// NewRotationScheduler creates a RotationScheduler.
func NewRotationScheduler(config SchedulerConfig, lifecycle LifecycleUseCase, logger *slog.Logger) *RotationScheduler {
	return &RotationScheduler{
		config:    config,
		lifecycle: lifecycle,
		logger:    logger,
	}
}

// Start blocks until ctx is done.
func (s *RotationScheduler) Start(ctx context.Context) error {
	if s.config.Interval <= 0 {
		return fmt.Errorf("rotation scheduler interval must be positive, got %s", s.config.Interval)
	}

	s.logger.Info("starting rotation scheduler", slog.Duration("interval", s.config.Interval))

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopping rotation scheduler")
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single rotation pass and logs its outcome.
func (s *RotationScheduler) RunOnce(ctx context.Context) {
	report, err := s.lifecycle.ProcessAutomaticRotations(ctx, "")
	if err != nil {
		level := slog.LevelError
		if apperrors.Retryable(err) {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "failed to process automatic rotations", slog.Any("error", err))
		return
	}

	if len(report.RotatedKeys) > 0 || len(report.Errors) > 0 {
		s.logger.Info("automatic rotations processed",
			slog.Int("rotated", len(report.RotatedKeys)),
			slog.Int("failed", len(report.Errors)),
		)
	}
}
