package lyrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arunsworld/nursery"

	"github.com/contre95/soullyrics/src/features/metrics"
	"github.com/contre95/soullyrics/src/music"
)

// raceResult is the single winner slot shared by the racing jobs.
type raceResult struct {
	mu      sync.Mutex
	winner  *music.Lyrics
	settled bool
}

// offer records l as the winner if the race is still open. It reports whether l won.
func (r *raceResult) offer(l *music.Lyrics) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settled {
		return false
	}
	r.winner = l
	r.settled = true
	return true
}

// close stops accepting results and returns the winner, if any.
func (r *raceResult) close() *music.Lyrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settled = true
	return r.winner
}

// race calls FetchSynced on every synced-capable provider at once. The first valid
// LRC result wins and cancels the rest. The whole race is bounded by deadline even
// if a provider ignores cancellation.
func (s *Service) race(ctx context.Context, deadline time.Duration, providers []music.LyricsProvider, artist, title string) *music.Lyrics {
	var fetchers []music.SyncedFetcher
	for _, p := range providers {
		if f, ok := p.(music.SyncedFetcher); ok {
			fetchers = append(fetchers, f)
		}
	}
	if len(fetchers) == 0 {
		return nil
	}

	var (
		raceCtx context.Context
		cancel  context.CancelFunc
	)
	if deadline > 0 {
		raceCtx, cancel = context.WithTimeout(ctx, deadline)
	} else {
		raceCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	result := &raceResult{}
	jobs := make([]nursery.ConcurrentJob, 0, len(fetchers))
	// Launch order follows priority, so it only matters as a tie-break
	for _, f := range fetchers {
		jobs = append(jobs, func(f music.SyncedFetcher) nursery.ConcurrentJob {
			return func(ctx context.Context, _ chan error) {
				name := f.Name()
				l, err := f.FetchSynced(ctx, artist, title)
				switch {
				case err != nil:
					if ctx.Err() != nil {
						s.metrics.ProviderRequest(name, StageRace, metrics.OutcomeLate)
						slog.Debug("Synced fetch abandoned", "provider", name, "error", err)
						return
					}
					s.metrics.ProviderRequest(name, StageRace, metrics.OutcomeError)
					slog.Warn("Synced lyrics fetch failed", "provider", name, "artist", artist, "title", title, "error", err)
				case l == nil || !music.IsValidLrc(l.Lrc()):
					s.metrics.ProviderRequest(name, StageRace, metrics.OutcomeMiss)
				case result.offer(l):
					s.metrics.ProviderRequest(name, StageRace, metrics.OutcomeHit)
					s.metrics.RaceWinner(name)
					slog.Debug("Synced race won", "provider", name, "artist", artist, "title", title)
					cancel()
				default:
					s.metrics.ProviderRequest(name, StageRace, metrics.OutcomeLate)
					slog.Debug("Discarding late synced result", "provider", name)
				}
			}
		}(f))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Jobs never write to the error channel, failures are only logged
		_ = nursery.RunConcurrentlyWithContext(raceCtx, jobs...)
	}()

	select {
	case <-done:
	case <-raceCtx.Done():
		if ctx.Err() == nil && result.close() == nil {
			slog.Info("Synced race deadline reached", "artist", artist, "title", title, "deadline", deadline)
		}
	}
	return result.close()
}
