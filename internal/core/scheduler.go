package core

// scheduler.go runs the retention job that purges old analyses.
//
// The job is long-running and stops with its context. A failed run is logged
// and retried on the next tick; it never stops the server.

import (
	"context"
	"log/slog"
	"time"
)

// RetentionConfig controls the retention job.
type RetentionConfig struct {
	Days          int           // analyses older than this are purged; <= 0 disables the job
	BatchSize     int           // rows per DELETE (default: 500)
	CheckInterval time.Duration // how often to run (default: 24h)
}

func (c RetentionConfig) withDefaults() RetentionConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 24 * time.Hour
	}
	return c
}

// StartRetentionScheduler purges expired analyses immediately and then every
// CheckInterval until ctx is cancelled. It blocks; run it in a goroutine.
func (s *Service) StartRetentionScheduler(ctx context.Context, cfg RetentionConfig) {
	if cfg.Days <= 0 {
		slog.Info("retention disabled")
		return
	}
	cfg = cfg.withDefaults()

	slog.Info("retention scheduler started",
		"retention_days", cfg.Days,
		"batch_size", cfg.BatchSize,
		"interval", cfg.CheckInterval.String(),
	)

	s.runRetentionJob(ctx, cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention scheduler stopped")
			return
		case <-ticker.C:
			s.runRetentionJob(ctx, cfg)
		}
	}
}

// PurgeExpired deletes analyses older than cfg.Days once, evicts them from
// the result cache and returns the number removed.
func (s *Service) PurgeExpired(ctx context.Context, cfg RetentionConfig) (int64, error) {
	cfg = cfg.withDefaults()
	ids, err := s.repo.PurgeOlderThan(ctx, cfg.Days, cfg.BatchSize)
	for _, id := range ids {
		s.cache.Delete(ctx, id)
	}
	return int64(len(ids)), err
}

func (s *Service) runRetentionJob(ctx context.Context, cfg RetentionConfig) {
	start := time.Now()
	purged, err := s.PurgeExpired(ctx, cfg)
	if err != nil {
		slog.Error("retention purge failed", "error", err, "purged", purged)
		return
	}
	slog.Info("retention purge completed",
		"purged", purged,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
