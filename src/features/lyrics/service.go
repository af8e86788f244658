package lyrics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/contre95/soullyrics/src/features/config"
	"github.com/contre95/soullyrics/src/features/metrics"
	"github.com/contre95/soullyrics/src/music"
)

// Pipeline stages, used in logs and metric labels.
const (
	StageCache      = "cache"
	StageRace       = "race"
	StageSequential = "sequential"
	StageSearch     = "search"
	StageStaleCache = "stale_cache"
)

// Service resolves lyrics: cache, synced race, plain fallback, search fallback.
type Service struct {
	cache   music.LyricsCache
	config  *config.Manager
	metrics *metrics.Recorder

	mu        sync.RWMutex
	providers map[string]music.LyricsProvider

	group singleflight.Group
	now   func() time.Time
}

// NewService creates a new lyrics service. recorder may be nil.
func NewService(cache music.LyricsCache, providers []music.LyricsProvider, cfg *config.Manager, recorder *metrics.Recorder) *Service {
	s := &Service{
		cache:   cache,
		config:  cfg,
		metrics: recorder,
		now:     time.Now,
	}
	s.SetProviders(providers)
	return s
}

// SetProviders swaps the provider set, typically after a config reload.
// Requests already running keep the set they started with.
func (s *Service) SetProviders(providers []music.LyricsProvider) {
	byName := make(map[string]music.LyricsProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	s.mu.Lock()
	s.providers = byName
	s.mu.Unlock()
	slog.Debug("Lyrics providers updated", "count", len(byName))
}

// ordered returns the enabled providers in priority order.
func (s *Service) ordered(cfg *config.Config) []music.LyricsProvider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ordered []music.LyricsProvider
	for _, name := range cfg.EnabledProviders() {
		if p, ok := s.providers[name]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered
}

// Resolve returns lyrics for a song.
func (s *Service) Resolve(ctx context.Context, song music.Song) (*music.Lyrics, error) {
	if err := song.Validate(); err != nil {
		return nil, err
	}
	return s.ResolveRaw(ctx, song.Artist, song.Title)
}

// ResolveRaw returns lyrics for an artist/title pair. Concurrent calls for the
// same fingerprint share one pipeline run; a caller whose ctx ends stops waiting
// but the run completes and is cached for the others.
func (s *Service) ResolveRaw(ctx context.Context, artist, title string) (*music.Lyrics, error) {
	artist = strings.TrimSpace(artist)
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("song title cannot be empty")
	}
	fp := music.Fingerprint(artist, title)

	ch := s.group.DoChan(fp, func() (any, error) {
		return s.resolve(context.WithoutCancel(ctx), artist, title, fp)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			slog.Debug("Joined in-flight lyrics lookup", "fingerprint", fp)
		}
		return res.Val.(*music.Lyrics), nil
	}
}

func (s *Service) resolve(ctx context.Context, artist, title, fp string) (*music.Lyrics, error) {
	start := s.now()
	cfg := s.config.Get()

	cached, err := s.cache.Get(ctx, fp)
	if err != nil {
		return nil, fmt.Errorf("failed to read lyrics cache: %w", err)
	}
	switch {
	case cached == nil:
		s.metrics.CacheLookup("miss")
	case cached.IsSynced:
		s.metrics.CacheLookup("synced")
		s.metrics.ObserveResolve(StageCache, s.now().Sub(start))
		slog.Debug("Synced lyrics served from cache", "fingerprint", fp)
		return cached, nil
	default:
		s.metrics.CacheLookup("unsynced")
	}

	providers := s.ordered(cfg)
	if len(providers) == 0 {
		slog.Warn("No lyrics providers enabled")
	}

	if l := s.race(ctx, cfg.Lyrics.RaceDeadline, providers, artist, title); l != nil {
		return s.store(ctx, l, artist, title, fp, StageRace, start)
	}

	// Only a plain replacement is possible past this point
	if cached != nil && !cached.IsStale(cfg.Cache.TTL, s.now()) {
		s.metrics.ObserveResolve(StageCache, s.now().Sub(start))
		slog.Debug("Serving fresh unsynced lyrics from cache", "fingerprint", fp)
		return cached, nil
	}

	if l := s.sequential(ctx, providers, artist, title); l != nil {
		return s.store(ctx, l, artist, title, fp, StageSequential, start)
	}
	if l := s.search(ctx, providers, artist, title); l != nil {
		return s.store(ctx, l, artist, title, fp, StageSearch, start)
	}

	if cached != nil {
		s.metrics.ObserveResolve(StageStaleCache, s.now().Sub(start))
		slog.Info("All providers failed, serving stale cached lyrics", "artist", artist, "title", title)
		return cached, nil
	}
	slog.Info("No lyrics found", "artist", artist, "title", title)
	return nil, &music.NotFoundError{Artist: artist, Title: title}
}

// sequential asks each plain fetcher in priority order; errors move on to the next.
func (s *Service) sequential(ctx context.Context, providers []music.LyricsProvider, artist, title string) *music.Lyrics {
	for _, p := range providers {
		fetcher, ok := p.(music.PlainFetcher)
		if !ok {
			continue
		}
		l, err := fetcher.FetchPlain(ctx, artist, title)
		if err != nil {
			slog.Warn("Plain lyrics fetch failed", "provider", p.Name(), "artist", artist, "title", title, "error", err)
			s.metrics.ProviderRequest(p.Name(), StageSequential, metrics.OutcomeError)
			continue
		}
		if !usable(l) {
			s.metrics.ProviderRequest(p.Name(), StageSequential, metrics.OutcomeMiss)
			continue
		}
		s.metrics.ProviderRequest(p.Name(), StageSequential, metrics.OutcomeHit)
		return l
	}
	return nil
}

// search queries "artist title" first and the bare title second.
func (s *Service) search(ctx context.Context, providers []music.LyricsProvider, artist, title string) *music.Lyrics {
	queries := []string{title}
	if artist != "" {
		queries = []string{artist + " " + title, title}
	}
	for _, q := range queries {
		for _, p := range providers {
			searcher, ok := p.(music.Searcher)
			if !ok {
				continue
			}
			results, err := searcher.Search(ctx, q)
			if err != nil {
				slog.Warn("Lyrics search failed", "provider", p.Name(), "query", q, "error", err)
				s.metrics.ProviderRequest(p.Name(), StageSearch, metrics.OutcomeError)
				continue
			}
			for _, l := range results {
				if usable(l) {
					s.metrics.ProviderRequest(p.Name(), StageSearch, metrics.OutcomeHit)
					slog.Debug("Search fallback matched", "provider", p.Name(), "query", q)
					return l
				}
			}
			s.metrics.ProviderRequest(p.Name(), StageSearch, metrics.OutcomeMiss)
		}
	}
	return nil
}

// store normalizes a provider result and writes it through to the cache.
func (s *Service) store(ctx context.Context, l *music.Lyrics, artist, title, fp, stage string, start time.Time) (*music.Lyrics, error) {
	// Providers may hand back shared values; never mutate them
	resolved := *l
	resolved.ID = ""
	resolved.FetchedAt = time.Time{}
	resolved.Artist, resolved.Title = artist, title
	resolved.Normalize(fp, s.now())

	if err := s.cache.Put(ctx, &resolved); err != nil {
		return nil, fmt.Errorf("failed to cache lyrics: %w", err)
	}
	s.metrics.ObserveResolve(stage, s.now().Sub(start))
	slog.Info("Lyrics resolved", "artist", artist, "title", title, "source", resolved.Source, "synced", resolved.IsSynced, "stage", stage)
	return &resolved, nil
}

// usable reports whether a provider result has plain text or valid LRC to show.
func usable(l *music.Lyrics) bool {
	return !l.IsEmpty() || music.IsValidLrc(l.Lrc())
}

// CurrentLine returns the LRC line active at t and its index.
func (s *Service) CurrentLine(l *music.Lyrics, t time.Duration) (int, music.LrcLine, bool) {
	parsed := l.Parsed()
	i := parsed.LineIndexAt(t)
	if i < 0 {
		return -1, music.LrcLine{}, false
	}
	return i, parsed.Lines[i], true
}

// Cached returns every cache entry.
func (s *Service) Cached(ctx context.Context) ([]*music.Lyrics, error) {
	entries, err := s.cache.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cached lyrics: %w", err)
	}
	return entries, nil
}

// SearchCache runs a text search over the cache.
func (s *Service) SearchCache(ctx context.Context, query string) ([]*music.Lyrics, error) {
	entries, err := s.cache.SearchText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search cached lyrics: %w", err)
	}
	return entries, nil
}

// Forget deletes a cache entry by lyrics id.
func (s *Service) Forget(ctx context.Context, lyricsID string) error {
	if err := s.cache.Delete(ctx, lyricsID); err != nil {
		return fmt.Errorf("failed to delete cached lyrics %s: %w", lyricsID, err)
	}
	slog.Info("Cached lyrics deleted", "id", lyricsID)
	return nil
}

// Providers describes every registered provider, enabled ones first in priority order.
func (s *Service) Providers() []music.ProviderInfo {
	cfg := s.config.Get()
	s.mu.RLock()
	infos := make([]music.ProviderInfo, 0, len(s.providers))
	for name, p := range s.providers {
		plain, synced, search := music.Capabilities(p)
		rank := cfg.ProviderRank(name)
		infos = append(infos, music.ProviderInfo{
			Name:     name,
			Enabled:  rank > 0,
			Priority: rank,
			Plain:    plain,
			Synced:   synced,
			Search:   search,
		})
	}
	s.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		a, b := infos[i], infos[j]
		if a.Enabled != b.Enabled {
			return a.Enabled
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.Name < b.Name
	})
	return infos
}
