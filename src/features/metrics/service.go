package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/contre95/soullyrics/src/features/config"
	"github.com/contre95/soullyrics/src/music"
)

// CacheStats summarises what the lyrics cache holds.
type CacheStats struct {
	Total    int            `json:"total"`
	Synced   int            `json:"synced"`
	Unsynced int            `json:"unsynced"`
	Stale    int            `json:"stale"`
	BySource map[string]int `json:"by_source"`
}

// Service provides cache statistics and keeps the cache gauges current.
type Service struct {
	cache         music.LyricsCache
	recorder      *Recorder
	configManager *config.Manager
}

// NewService creates a new metrics service. recorder may be nil.
func NewService(cache music.LyricsCache, recorder *Recorder, cfgManager *config.Manager) *Service {
	return &Service{
		cache:         cache,
		recorder:      recorder,
		configManager: cfgManager,
	}
}

// CacheStats scans the cache.
func (s *Service) CacheStats(ctx context.Context) (*CacheStats, error) {
	entries, err := s.cache.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}
	ttl := s.configManager.Get().Cache.TTL
	now := time.Now()

	stats := &CacheStats{BySource: map[string]int{}}
	for _, l := range entries {
		stats.Total++
		if l.IsSynced {
			stats.Synced++
		} else {
			stats.Unsynced++
		}
		if l.IsStale(ttl, now) {
			stats.Stale++
		}
		stats.BySource[l.Source]++
	}
	return stats, nil
}

// Collect refreshes the cache gauges.
func (s *Service) Collect(ctx context.Context) error {
	stats, err := s.CacheStats(ctx)
	if err != nil {
		return err
	}
	s.recorder.setCacheEntries(stats)
	slog.Debug("Cache metrics collected", "total", stats.Total, "synced", stats.Synced, "stale", stats.Stale)
	return nil
}
