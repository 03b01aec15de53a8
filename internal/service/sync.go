package service

import (
	"context"
	"log/slog"
	"time"
)

// SyncLoop calls SyncAll every interval until ctx is canceled.
// It returns immediately when no cloud mirror is configured.
func (j *Journal) SyncLoop(ctx context.Context, interval time.Duration) {
	if j.remote == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.SyncAll(ctx); err != nil {
				slog.Warn("periodic sync failed", "error", err)
				continue
			}
			slog.Debug("periodic sync complete")
		}
	}
}
