package lyrics

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/contre95/soullyrics/src/features/config"
	"github.com/contre95/soullyrics/src/features/metrics"
	"github.com/contre95/soullyrics/src/music"
)

const testLrc = "[00:00.00]First\n[00:05.00]Second\n[00:10.00]Third"

// syncedProvider only implements FetchSynced
type syncedProvider struct {
	name  string
	delay time.Duration
	block chan struct{} // when set, ignores ctx until closed
	lrc   string
	err   error
	calls atomic.Int32
	ended chan error // when set, receives ctx.Err() as the fetch returns
}

func (p *syncedProvider) Name() string { return p.name }

func (p *syncedProvider) FetchSynced(ctx context.Context, artist, title string) (*music.Lyrics, error) {
	p.calls.Add(1)
	if p.ended != nil {
		defer func() { p.ended <- ctx.Err() }()
	}
	if p.block != nil {
		<-p.block
	}
	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.delay):
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	if p.lrc == "" {
		return nil, nil
	}
	return music.NewLyrics(p.name, "", p.lrc), nil
}

// plainProvider only implements FetchPlain
type plainProvider struct {
	name  string
	text  string
	err   error
	calls atomic.Int32
}

func (p *plainProvider) Name() string { return p.name }

func (p *plainProvider) FetchPlain(ctx context.Context, artist, title string) (*music.Lyrics, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	if p.text == "" {
		return nil, nil
	}
	return music.NewLyrics(p.name, p.text, ""), nil
}

// searchProvider answers only the queries it knows
type searchProvider struct {
	name    string
	answers map[string]string

	mu      sync.Mutex
	queries []string
}

func (p *searchProvider) Name() string { return p.name }

func (p *searchProvider) Search(ctx context.Context, query string) ([]*music.Lyrics, error) {
	p.mu.Lock()
	p.queries = append(p.queries, query)
	p.mu.Unlock()
	text, ok := p.answers[query]
	if !ok {
		return nil, nil
	}
	return []*music.Lyrics{music.NewLyrics(p.name, text, "")}, nil
}

// memCache is an in-memory music.LyricsCache
type memCache struct {
	music.LyricsCache
	mu      sync.Mutex
	entries map[string]music.Lyrics
	puts    int
	getErr  error
}

func newMemCache(entries ...*music.Lyrics) *memCache {
	c := &memCache{entries: map[string]music.Lyrics{}}
	for _, l := range entries {
		c.entries[l.SongID] = *l
	}
	return c
}

func (c *memCache) Get(ctx context.Context, fingerprint string) (*music.Lyrics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	l, ok := c.entries[fingerprint]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (c *memCache) Put(ctx context.Context, l *music.Lyrics) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[l.SongID] = *l
	c.puts++
	return nil
}

func (c *memCache) GetAll(ctx context.Context) ([]*music.Lyrics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	all := make([]*music.Lyrics, 0, len(c.entries))
	for _, l := range c.entries {
		l := l
		all = append(all, &l)
	}
	return all, nil
}

func newTestService(t *testing.T, cache music.LyricsCache, deadline time.Duration, providers ...music.LyricsProvider) *Service {
	t.Helper()
	cfg := &config.Config{
		Cache: config.Cache{TTL: time.Hour},
		Lyrics: config.Lyrics{
			RaceDeadline: deadline,
			Providers:    map[string]config.LyricsProvider{},
		},
	}
	for _, p := range providers {
		cfg.Lyrics.Priority = append(cfg.Lyrics.Priority, p.Name())
		cfg.Lyrics.Providers[p.Name()] = config.LyricsProvider{Enabled: true}
	}
	return NewService(cache, providers, config.NewManager(cfg), metrics.NewRecorder())
}

func disableProvider(svc *Service, name string) {
	cfg := *svc.config.Get()
	cfg.Lyrics.Providers = maps.Clone(cfg.Lyrics.Providers)
	cfg.Lyrics.Providers[name] = config.LyricsProvider{Enabled: false}
	svc.config.Update(&cfg)
}

func cachedEntry(t *testing.T, artist, title, plain, lrc string, fetchedAt time.Time) *music.Lyrics {
	t.Helper()
	l := music.NewLyrics("cache", plain, lrc)
	l.Artist, l.Title = artist, title
	l.FetchedAt = fetchedAt
	l.Normalize(music.Fingerprint(artist, title), fetchedAt)
	return l
}

func TestResolve_SlowFirstProviderLosesRace(t *testing.T) {
	slow := &syncedProvider{name: "slow", delay: time.Hour, lrc: testLrc}
	fast := &syncedProvider{name: "fast", lrc: testLrc}
	svc := newTestService(t, newMemCache(), 2*time.Second, slow, fast)

	l, err := svc.Resolve(context.Background(), music.NewSong("Daft Punk", "One More Time", ""))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if l.Source != "fast" || !l.IsSynced {
		t.Errorf("got source %q synced=%v, want fast synced", l.Source, l.IsSynced)
	}
	if l.SongID != "daft_punk_one_more_time" {
		t.Errorf("SongID = %q", l.SongID)
	}
	if l.PlainLyrics != "First\nSecond\nThird" {
		t.Errorf("plain not derived from lrc: %q", l.PlainLyrics)
	}
}

func TestResolve_RaceLoserIsCancelled(t *testing.T) {
	slow := &syncedProvider{name: "slow", delay: time.Hour, lrc: testLrc, ended: make(chan error, 1)}
	fast := &syncedProvider{name: "fast", lrc: testLrc}
	svc := newTestService(t, newMemCache(), 5*time.Second, slow, fast)

	if _, err := svc.ResolveRaw(context.Background(), "Daft Punk", "One More Time"); err != nil {
		t.Fatalf("ResolveRaw: %v", err)
	}
	select {
	case err := <-slow.ended:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("losing racer saw %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("losing racer was not cancelled after the winner landed")
	}
}

func TestResolve_RaceDeadlineBoundsUnresponsiveProvider(t *testing.T) {
	stuck := &syncedProvider{name: "stuck", block: make(chan struct{}), lrc: testLrc}
	defer close(stuck.block)
	plain := &plainProvider{name: "plain", text: "la la la"}
	svc := newTestService(t, newMemCache(), 50*time.Millisecond, stuck, plain)

	start := time.Now()
	l, err := svc.ResolveRaw(context.Background(), "Artist", "Song")
	if err != nil {
		t.Fatalf("ResolveRaw: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("race took %v, deadline not enforced", elapsed)
	}
	if l.Source != "plain" || l.IsSynced {
		t.Errorf("got source %q synced=%v, want plain fallback", l.Source, l.IsSynced)
	}
}

func TestResolve_FailedAndEmptyRacersFallThrough(t *testing.T) {
	broken := &syncedProvider{name: "broken", err: errors.New("connection refused")}
	empty := &syncedProvider{name: "empty"}
	prose := &syncedProvider{name: "prose", lrc: "no timestamps here"}
	plain := &plainProvider{name: "plain", text: "words"}
	svc := newTestService(t, newMemCache(), time.Second, broken, empty, prose, plain)

	l, err := svc.ResolveRaw(context.Background(), "A", "B")
	if err != nil {
		t.Fatalf("ResolveRaw: %v", err)
	}
	if l.Source != "plain" {
		t.Errorf("source = %q, want plain", l.Source)
	}
}

func TestResolve_SyncedCacheHitSkipsProviders(t *testing.T) {
	cached := cachedEntry(t, "A", "B", "", testLrc, time.Now().Add(-48*time.Hour))
	p := &syncedProvider{name: "lrclib", lrc: testLrc}
	svc := newTestService(t, newMemCache(cached), time.Second, p)

	l, err := svc.ResolveRaw(context.Background(), "A", "B")
	if err != nil {
		t.Fatalf("ResolveRaw: %v", err)
	}
	if l.ID != cached.ID {
		t.Errorf("expected cached entry, got id %q", l.ID)
	}
	if p.calls.Load() != 0 {
		t.Errorf("provider called %d times on synced hit", p.calls.Load())
	}
}

func TestResolve_CacheUpgradeToSynced(t *testing.T) {
	cached := cachedEntry(t, "A", "B", "old plain", "", time.Now())
	cache := newMemCache(cached)
	p := &syncedProvider{name: "lrclib", lrc: testLrc}
	svc := newTestService(t, cache, time.Second, p)

	l, err := svc.ResolveRaw(context.Background(), "A", "B")
	if err != nil {
		t.Fatalf("ResolveRaw: %v", err)
	}
	if !l.IsSynced || l.SongID != cached.SongID {
		t.Errorf("got synced=%v songId=%q, want synced with %q", l.IsSynced, l.SongID, cached.SongID)
	}
	stored, _ := cache.Get(context.Background(), cached.SongID)
	if stored == nil || !stored.IsSynced || stored.SongID != cached.SongID {
		t.Errorf("cache not upgraded: %+v", stored)
	}
	if stored.Artist != "A" || stored.Title != "B" {
		t.Errorf("metadata not stored: %q %q", stored.Artist, stored.Title)
	}
}

func TestResolve_FreshUnsyncedHitAfterFailedRace(t *testing.T) {
	cached := cachedEntry(t, "A", "B", "old plain", "", time.Now())
	synced := &syncedProvider{name: "synced"}
	plain := &plainProvider{name: "plain", text: "new plain"}
	svc := newTestService(t, newMemCache(cached), time.Second, synced, plain)

	l, err := svc.ResolveRaw(context.Background(), "A", "B")
	if err != nil {
		t.Fatalf("ResolveRaw: %v", err)
	}
	if l.PlainLyrics != "old plain" {
		t.Errorf("expected cached plain lyrics, got %q", l.PlainLyrics)
	}
	if synced.calls.Load() != 1 {
		t.Errorf("race should still run on an unsynced hit, calls=%d", synced.calls.Load())
	}
	if plain.calls.Load() != 0 {
		t.Errorf("plain fallback should not run for a fresh entry, calls=%d", plain.calls.Load())
	}
}

func TestResolve_StaleUnsyncedHitRefreshesOrFallsBack(t *testing.T) {
	t.Run("refreshed by plain fallback", func(t *testing.T) {
		cached := cachedEntry(t, "A", "B", "old plain", "", time.Now().Add(-2*time.Hour))
		plain := &plainProvider{name: "plain", text: "new plain"}
		svc := newTestService(t, newMemCache(cached), time.Second, plain)

		l, err := svc.ResolveRaw(context.Background(), "A", "B")
		if err != nil {
			t.Fatalf("ResolveRaw: %v", err)
		}
		if l.PlainLyrics != "new plain" {
			t.Errorf("got %q, want refreshed plain", l.PlainLyrics)
		}
	})
	t.Run("every stage fails", func(t *testing.T) {
		cached := cachedEntry(t, "A", "B", "old plain", "", time.Now().Add(-2*time.Hour))
		plain := &plainProvider{name: "plain", err: errors.New("boom")}
		svc := newTestService(t, newMemCache(cached), time.Second, plain)

		l, err := svc.ResolveRaw(context.Background(), "A", "B")
		if err != nil {
			t.Fatalf("expected stale cached value, got %v", err)
		}
		if l.ID != cached.ID {
			t.Errorf("expected cached entry back, got %+v", l)
		}
	})
}

func TestResolve_SequentialFallbackOrder(t *testing.T) {
	first := &plainProvider{name: "first", err: errors.New("timeout")}
	second := &plainProvider{name: "second"}
	third := &plainProvider{name: "third", text: "third text"}
	fourth := &plainProvider{name: "fourth", text: "fourth text"}
	svc := newTestService(t, newMemCache(), time.Second, first, second, third, fourth)

	l, err := svc.ResolveRaw(context.Background(), "A", "B")
	if err != nil {
		t.Fatalf("ResolveRaw: %v", err)
	}
	if l.Source != "third" {
		t.Errorf("source = %q, want third", l.Source)
	}
	if first.calls.Load() != 1 || second.calls.Load() != 1 {
		t.Error("earlier providers should have been tried")
	}
	if fourth.calls.Load() != 0 {
		t.Error("providers after the first hit should not be called")
	}
}

func TestResolve_DisabledProviderIsSkipped(t *testing.T) {
	off := &plainProvider{name: "off", text: "should not be used"}
	on := &plainProvider{name: "on", text: "used"}
	svc := newTestService(t, newMemCache(), time.Second, off, on)
	disableProvider(svc, "off")

	l, err := svc.ResolveRaw(context.Background(), "A", "B")
	if err != nil {
		t.Fatalf("ResolveRaw: %v", err)
	}
	if l.Source != "on" || off.calls.Load() != 0 {
		t.Errorf("source = %q, disabled calls = %d", l.Source, off.calls.Load())
	}
}

func TestResolve_SearchFallbackDropsArtist(t *testing.T) {
	search := &searchProvider{name: "search", answers: map[string]string{"Svefn-g-englar": "Tjú, tjú"}}
	svc := newTestService(t, newMemCache(), time.Second, search)

	l, err := svc.ResolveRaw(context.Background(), "Sigur Ros", "Svefn-g-englar")
	if err != nil {
		t.Fatalf("ResolveRaw: %v", err)
	}
	if l.PlainLyrics != "Tjú, tjú" {
		t.Errorf("plain = %q", l.PlainLyrics)
	}
	want := []string{"Sigur Ros Svefn-g-englar", "Svefn-g-englar"}
	if fmt.Sprint(search.queries) != fmt.Sprint(want) {
		t.Errorf("queries = %q, want %q", search.queries, want)
	}
	if l.SongID != music.Fingerprint("Sigur Ros", "Svefn-g-englar") {
		t.Errorf("search result stored under %q", l.SongID)
	}
}

func TestResolve_NotFound(t *testing.T) {
	synced := &syncedProvider{name: "synced"}
	plain := &plainProvider{name: "plain"}
	search := &searchProvider{name: "search"}
	cache := newMemCache()
	svc := newTestService(t, cache, time.Second, synced, plain, search)

	_, err := svc.ResolveRaw(context.Background(), "Nobody", "Nothing")
	if !errors.Is(err, music.ErrLyricsNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	var nf *music.NotFoundError
	if !errors.As(err, &nf) || nf.Artist != "Nobody" || nf.Title != "Nothing" {
		t.Errorf("not found error lost artist/title: %v", err)
	}
	if cache.puts != 0 {
		t.Errorf("nothing should be cached, puts=%d", cache.puts)
	}
}

func TestResolve_CacheErrorPropagates(t *testing.T) {
	cache := newMemCache()
	cache.getErr = errors.New("disk I/O error")
	svc := newTestService(t, cache, time.Second, &plainProvider{name: "plain", text: "x"})

	_, err := svc.ResolveRaw(context.Background(), "A", "B")
	if err == nil || errors.Is(err, music.ErrLyricsNotFound) {
		t.Fatalf("expected cache error, got %v", err)
	}
	if !errors.Is(err, cache.getErr) {
		t.Errorf("cache error not wrapped: %v", err)
	}
}

func TestResolve_InvalidSong(t *testing.T) {
	svc := newTestService(t, newMemCache(), time.Second)
	if _, err := svc.Resolve(context.Background(), music.NewSong("A", "  ", "")); err == nil {
		t.Error("expected error for empty title")
	}
	if _, err := svc.ResolveRaw(context.Background(), "A", ""); err == nil {
		t.Error("expected error for empty title")
	}
}

func TestResolveRaw_ConcurrentCallsShareOneLookup(t *testing.T) {
	p := &syncedProvider{name: "lrclib", block: make(chan struct{}), lrc: testLrc}
	svc := newTestService(t, newMemCache(), 5*time.Second, p)

	var wg sync.WaitGroup
	results := make([]*music.Lyrics, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l, err := svc.ResolveRaw(context.Background(), "A", "B")
			if err != nil {
				t.Errorf("ResolveRaw: %v", err)
				return
			}
			results[i] = l
		}(i)
	}
	time.Sleep(100 * time.Millisecond)
	close(p.block)
	wg.Wait()

	if p.calls.Load() != 1 {
		t.Errorf("provider called %d times, want 1", p.calls.Load())
	}
	for _, l := range results {
		if l == nil || l.ID != results[0].ID {
			t.Fatalf("callers got different results")
		}
	}
}

func TestResolveRaw_CallerContextCancelled(t *testing.T) {
	p := &syncedProvider{name: "lrclib", block: make(chan struct{}), lrc: testLrc}
	cache := newMemCache()
	svc := newTestService(t, cache, 5*time.Second, p)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := svc.ResolveRaw(ctx, "A", "B"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	// The shared lookup still finishes and lands in the cache
	close(p.block)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if l, _ := cache.Get(context.Background(), music.Fingerprint("A", "B")); l != nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("abandoned lookup never reached the cache")
}

func TestService_CurrentLine(t *testing.T) {
	svc := newTestService(t, newMemCache(), time.Second)
	l := music.NewLyrics("test", "", testLrc)

	tests := []struct {
		at      time.Duration
		want    string
		wantIdx int
		ok      bool
	}{
		{at: 7 * time.Second, want: "Second", wantIdx: 1, ok: true},
		{at: 0, want: "First", wantIdx: 0, ok: true},
		{at: time.Minute, want: "Third", wantIdx: 2, ok: true},
		{at: -time.Second, ok: false, wantIdx: -1},
	}
	for _, tt := range tests {
		i, line, ok := svc.CurrentLine(l, tt.at)
		if ok != tt.ok || i != tt.wantIdx || line.Text != tt.want {
			t.Errorf("CurrentLine(%v) = %d %q %v, want %d %q %v", tt.at, i, line.Text, ok, tt.wantIdx, tt.want, tt.ok)
		}
	}
}

func TestService_Providers(t *testing.T) {
	synced := &syncedProvider{name: "zeta"}
	plain := &plainProvider{name: "alpha"}
	search := &searchProvider{name: "mid"}
	svc := newTestService(t, newMemCache(), time.Second, synced, plain, search)
	disableProvider(svc, "mid")

	infos := svc.Providers()
	if len(infos) != 3 {
		t.Fatalf("got %d providers", len(infos))
	}
	if infos[0].Name != "zeta" || infos[0].Priority != 1 || !infos[0].Synced || infos[0].Plain {
		t.Errorf("unexpected first provider %+v", infos[0])
	}
	if infos[1].Name != "alpha" || infos[1].Priority != 2 || !infos[1].Plain {
		t.Errorf("unexpected second provider %+v", infos[1])
	}
	if infos[2].Name != "mid" || infos[2].Enabled || !infos[2].Search {
		t.Errorf("disabled provider should be last: %+v", infos[2])
	}
}

func TestService_RefreshStale(t *testing.T) {
	old := time.Now().Add(-3 * time.Hour)
	staleA := cachedEntry(t, "A", "One", "plain one", "", old)
	staleB := cachedEntry(t, "B", "Two", "plain two", "", old.Add(time.Minute))
	fresh := cachedEntry(t, "C", "Three", "plain three", "", time.Now())
	synced := cachedEntry(t, "D", "Four", "", testLrc, old)
	untitled := cachedEntry(t, "", "", "orphan", "", old)
	untitled.Title = ""
	untitled.SongID = "orphan"

	cache := newMemCache(staleA, staleB, fresh, synced, untitled)
	p := &syncedProvider{name: "lrclib", lrc: testLrc}
	svc := newTestService(t, cache, time.Second, p)

	report, err := svc.RefreshStale(context.Background(), 1)
	if err != nil {
		t.Fatalf("RefreshStale: %v", err)
	}
	if report.Checked != 1 || report.Upgraded != 1 {
		t.Errorf("unexpected report %+v", report)
	}
	upgraded, _ := cache.Get(context.Background(), staleA.SongID)
	if !upgraded.IsSynced {
		t.Error("oldest stale entry should have been refreshed first")
	}

	report, err = svc.RefreshStale(context.Background(), 0)
	if err != nil {
		t.Fatalf("RefreshStale: %v", err)
	}
	if report.Checked != 1 || report.Upgraded != 1 {
		t.Errorf("second pass should only pick the remaining stale entry: %+v", report)
	}
	if p.calls.Load() != 2 {
		t.Errorf("provider calls = %d, want 2", p.calls.Load())
	}
}
