package service

import (
	"context"
	"time"

	"github.com/medistock/medistock-backend/pkg/logger"
)

// ExpiryScheduler runs the expiration check periodically across all tenants.
type ExpiryScheduler struct {
	job      *ExpiryJob
	interval time.Duration
	logger   *logger.Logger
	cancel   context.CancelFunc
}

// NewExpiryScheduler creates a new expiration scheduler
func NewExpiryScheduler(job *ExpiryJob, interval time.Duration, log *logger.Logger) *ExpiryScheduler {
	return &ExpiryScheduler{
		job:      job,
		interval: interval,
		logger:   log,
	}
}

// Start starts the scheduler in a background goroutine.
// It runs one cycle immediately and then one per interval.
func (s *ExpiryScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		s.logger.Info().Dur("interval", s.interval).Msg("expiry scheduler started")

		s.runCycle(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("expiry scheduler stopped")
				return
			case <-ticker.C:
				s.runCycle(ctx)
			}
		}
	}()
}

// Stop stops the scheduler goroutine
func (s *ExpiryScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *ExpiryScheduler) runCycle(ctx context.Context) {
	// Failures are already logged per tenant; the next tick is the retry.
	if _, err := s.job.RunAll(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("expiration check cycle finished with errors")
	}
}
