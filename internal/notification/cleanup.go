// internal/notification/cleanup.go
// Retention job for read in-app notifications

package notifications

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	defaultCleanupInterval = 24 * time.Hour
	defaultRetention       = 30 * 24 * time.Hour
)

// CleanupJob deletes read notifications older than the retention age
type CleanupJob struct {
	repo      Repository
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewCleanupJob creates a cleanup job. Zero durations fall back to daily runs and 30 days retention.
func NewCleanupJob(repo Repository, interval, retention time.Duration, logger *zap.Logger) *CleanupJob {
	if interval == 0 {
		interval = defaultCleanupInterval
	}
	if retention == 0 {
		retention = defaultRetention
	}
	return &CleanupJob{
		repo:      repo,
		interval:  interval,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// Start runs one cleanup immediately, then on every tick until ctx is cancelled.
// A negative interval disables the job.
func (j *CleanupJob) Start(ctx context.Context) {
	if j.interval < 0 {
		j.logger.Info("notification cleanup disabled")
		return
	}
	j.logger.Info("starting notification cleanup job",
		zap.Duration("interval", j.interval),
		zap.Duration("retention", j.retention),
	)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.RunOnce(ctx)
	for {
		select {
		case <-ticker.C:
			j.RunOnce(ctx)
		case <-ctx.Done():
			j.logger.Info("stopping notification cleanup job")
			return
		}
	}
}

// RunOnce deletes what is past retention and returns how many rows went
func (j *CleanupJob) RunOnce(ctx context.Context) int64 {
	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	start := time.Now()
	cutoff := j.now().Add(-j.retention)
	deleted, err := j.repo.DeleteReadBefore(runCtx, cutoff)
	if err != nil {
		j.logger.Error("notification cleanup failed", zap.Error(err))
		return 0
	}

	notificationsCleanedTotal.Add(float64(deleted))
	j.logger.Info("notification cleanup completed",
		zap.Int64("deleted", deleted),
		zap.Time("cutoff", cutoff),
		zap.Duration("took", time.Since(start)),
	)
	return deleted
}
