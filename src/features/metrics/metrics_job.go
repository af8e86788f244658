package metrics

import (
	"context"
	"log/slog"
	"time"
)

// RunCollector calls Collect every interval until ctx is done. It runs once
// immediately so the gauges are populated on startup.
func (s *Service) RunCollector(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	slog.Info("Starting cache metrics collector", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := s.Collect(ctx); err != nil {
			slog.Warn("Failed to collect cache metrics", "error", err)
		}
		select {
		case <-ctx.Done():
			slog.Info("Cache metrics collector stopped")
			return
		case <-ticker.C:
		}
	}
}
