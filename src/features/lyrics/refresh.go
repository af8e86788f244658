package lyrics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/contre95/soullyrics/src/features/jobs"
	"github.com/contre95/soullyrics/src/music"
)

// RefreshReport summarizes one refresh pass.
type RefreshReport struct {
	Checked  int `json:"checked"`
	Upgraded int `json:"upgraded"`
	Failed   int `json:"failed"`
}

// RefreshJobType is the job type refresh runs are tracked under.
const RefreshJobType = "refresh"

// RefreshStale re-resolves up to batch stale unsynced entries, oldest first, so
// they get a chance at a synced upgrade. batch <= 0 means no limit.
func (s *Service) RefreshStale(ctx context.Context, batch int) (RefreshReport, error) {
	return s.refreshStale(ctx, batch, slog.Default(), func(int, string) {})
}

func (s *Service) refreshStale(ctx context.Context, batch int, logger *slog.Logger, progress func(int, string)) (RefreshReport, error) {
	var report RefreshReport
	entries, err := s.Cached(ctx)
	if err != nil {
		return report, err
	}
	ttl := s.config.Get().Cache.TTL
	now := s.now()

	var stale []*music.Lyrics
	for _, l := range entries {
		// Entries written without a title can't be looked up again
		if l.IsSynced || l.Title == "" || !l.IsStale(ttl, now) {
			continue
		}
		stale = append(stale, l)
	}
	sort.Slice(stale, func(i, j int) bool {
		return stale[i].FetchedAt.Before(stale[j].FetchedAt)
	})
	if batch > 0 && len(stale) > batch {
		stale = stale[:batch]
	}
	progress(0, fmt.Sprintf("%d stale entries", len(stale)))

	for i, l := range stale {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++
		resolved, err := s.ResolveRaw(ctx, l.Artist, l.Title)
		switch {
		case err != nil:
			report.Failed++
			logger.Warn("Failed to refresh cached lyrics", "artist", l.Artist, "title", l.Title, "error", err)
		case resolved.IsSynced:
			report.Upgraded++
			logger.Info("Upgraded cached lyrics to synced", "artist", l.Artist, "title", l.Title, "source", resolved.Source)
		}
		progress((i+1)*100/len(stale), fmt.Sprintf("%s - %s", l.Artist, l.Title))
	}
	slog.Info("Stale lyrics refresh finished", "checked", report.Checked, "upgraded", report.Upgraded, "failed", report.Failed)
	return report, nil
}

// RefreshTask runs RefreshStale as a tracked job, reading the batch size from
// the config at each run.
func (s *Service) RefreshTask() jobs.Task {
	return jobs.TaskFunc(func(ctx context.Context, logger *slog.Logger, progress func(int, string)) (map[string]any, error) {
		report, err := s.refreshStale(ctx, s.config.Get().Refresh.BatchSize, logger, progress)
		return map[string]any{
			"checked":  report.Checked,
			"upgraded": report.Upgraded,
			"failed":   report.Failed,
		}, err
	})
}
