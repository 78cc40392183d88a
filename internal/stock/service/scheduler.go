package service

import (
	"context"
	"time"

	"github.com/hospilog/hospilog-backend/pkg/logger"
)

// MonitorScheduler runs the stock scans on a fixed interval. Every cycle
// evaluates current state only, so a missed or doubled tick changes
// nothing.
type MonitorScheduler struct {
	monitor  *MonitorService
	interval time.Duration
	logger   *logger.Logger
	cancel   context.CancelFunc
}

// NewMonitorScheduler creates a new monitor scheduler
func NewMonitorScheduler(monitor *MonitorService, interval time.Duration, log *logger.Logger) *MonitorScheduler {
	return &MonitorScheduler{
		monitor:  monitor,
		interval: interval,
		logger:   log,
	}
}

// Start starts the scheduler in a background goroutine
func (s *MonitorScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		s.logger.Info().Dur("interval", s.interval).Msg("stock monitor started")

		// Run an initial scan immediately
		s.runScanCycle(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("stock monitor stopped")
				return
			case <-ticker.C:
				s.runScanCycle(ctx)
			}
		}
	}()
}

// Stop stops the scheduler goroutine
func (s *MonitorScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *MonitorScheduler) runScanCycle(ctx context.Context) {
	start := time.Now()

	if err := s.monitor.ScanAll(ctx); err != nil {
		s.logger.Error().Err(err).Msg("stock scan cycle finished with errors")
		return
	}

	s.logger.Info().Dur("duration", time.Since(start)).Msg("stock scan cycle completed")
}
