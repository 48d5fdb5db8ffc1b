package matching

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs the periodic expiry sweep
type Scheduler struct {
	service  Service
	interval time.Duration
	logger   *zap.Logger
}

func NewScheduler(service Service, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{service: service, interval: interval, logger: logger}
}

// Start blocks until ctx is cancelled. A non-positive interval disables the sweep.
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("expiry sweep disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	if _, err := s.service.Sweep(runCtx); err != nil {
		s.logger.Error("expiry sweep failed", zap.Error(err))
	}
}
