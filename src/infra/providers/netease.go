package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/contre95/soullyrics/src/music"
)

// DefaultNetEaseBaseURL is the public NetEase Cloud Music web API
const DefaultNetEaseBaseURL = "https://music.163.com"

type neteaseSearchResponse struct {
	Code   int `json:"code"`
	Result struct {
		Songs []struct {
			ID      int64  `json:"id"`
			Name    string `json:"name"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
		} `json:"songs"`
	} `json:"result"`
}

type neteaseLyricResponse struct {
	Code        int  `json:"code"`
	NoLyric     bool `json:"nolyric"`
	Uncollected bool `json:"uncollected"`
	Lrc         struct {
		Lyric string `json:"lyric"`
	} `json:"lrc"`
}

// neteaseMemoTTL covers the gap between the synced race and the plain fallback
// of a single lookup, which ask for the same lyric body.
const neteaseMemoTTL = time.Minute

type neteaseMemo struct {
	lrc     string
	expires time.Time
}

// NetEaseProvider looks a song up by search and then fetches its LRC.
// NetEase only serves LRC; plain lyrics are derived from it.
type NetEaseProvider struct {
	*client

	mu   sync.Mutex
	memo map[string]neteaseMemo
	now  func() time.Time
}

// NewNetEaseProvider creates a new NetEase provider
func NewNetEaseProvider(opts ...Option) *NetEaseProvider {
	return &NetEaseProvider{
		client: newClient("netease", DefaultNetEaseBaseURL, opts...),
		memo:   make(map[string]neteaseMemo),
		now:    time.Now,
	}
}

func memoKey(artist, title string) string {
	return strings.ToLower(strings.TrimSpace(artist)) + "\x00" + strings.ToLower(strings.TrimSpace(title))
}

func (p *NetEaseProvider) recall(key string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.memo[key]
	if !ok || p.now().After(m.expires) {
		return "", false
	}
	return m.lrc, true
}

// remember stores a completed lookup, including a confirmed miss, and drops expired ones.
func (p *NetEaseProvider) remember(key, lrc string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	for k, m := range p.memo {
		if now.After(m.expires) {
			delete(p.memo, k)
		}
	}
	p.memo[key] = neteaseMemo{lrc: lrc, expires: now.Add(neteaseMemoTTL)}
}

func (p *NetEaseProvider) Name() string { return "netease" }

// songID picks the first search hit whose title matches, falling back to the top hit.
func (p *NetEaseProvider) songID(ctx context.Context, artist, title string) (int64, error) {
	query := url.Values{}
	query.Set("s", strings.TrimSpace(artist+" "+title))
	query.Set("type", "1")
	query.Set("limit", "5")

	var resp neteaseSearchResponse
	found, err := p.getJSON(ctx, "/api/search/get", query, &resp)
	if err != nil {
		return 0, fmt.Errorf("netease search: %w", err)
	}
	if !found || resp.Code != 200 || len(resp.Result.Songs) == 0 {
		return 0, nil
	}
	for _, s := range resp.Result.Songs {
		if strings.EqualFold(strings.TrimSpace(s.Name), strings.TrimSpace(title)) {
			return s.ID, nil
		}
	}
	return resp.Result.Songs[0].ID, nil
}

// lrc returns the raw lyric body. Results are memoized briefly so FetchPlain
// after FetchSynced for the same song costs no extra requests. Errors are not.
func (p *NetEaseProvider) lrc(ctx context.Context, artist, title string) (string, error) {
	if strings.TrimSpace(title) == "" {
		return "", nil
	}
	key := memoKey(artist, title)
	if lrc, ok := p.recall(key); ok {
		return lrc, nil
	}
	lrc, err := p.fetchLrc(ctx, artist, title)
	if err != nil {
		return "", err
	}
	p.remember(key, lrc)
	return lrc, nil
}

func (p *NetEaseProvider) fetchLrc(ctx context.Context, artist, title string) (string, error) {
	id, err := p.songID(ctx, artist, title)
	if err != nil || id == 0 {
		return "", err
	}

	query := url.Values{}
	query.Set("id", strconv.FormatInt(id, 10))
	query.Set("lv", "1")

	var resp neteaseLyricResponse
	found, err := p.getJSON(ctx, "/api/song/lyric", query, &resp)
	if err != nil {
		return "", fmt.Errorf("netease lyric: %w", err)
	}
	if !found || resp.Code != 200 || resp.NoLyric || resp.Uncollected {
		return "", nil
	}
	return resp.Lrc.Lyric, nil
}

// FetchSynced returns the LRC for the best search hit.
func (p *NetEaseProvider) FetchSynced(ctx context.Context, artist, title string) (*music.Lyrics, error) {
	lrc, err := p.lrc(ctx, artist, title)
	if err != nil || lrc == "" {
		return nil, err
	}
	lyrics := music.NewLyrics(p.Name(), music.PlainFromLrc(lrc), lrc)
	if !lyrics.IsSynced {
		return nil, nil
	}
	return lyrics, nil
}

// FetchPlain returns the LRC stripped of timestamps. Some NetEase entries are
// untimed text stuffed into the lrc field; those are returned as-is.
func (p *NetEaseProvider) FetchPlain(ctx context.Context, artist, title string) (*music.Lyrics, error) {
	lrc, err := p.lrc(ctx, artist, title)
	if err != nil || lrc == "" {
		return nil, err
	}
	if !music.IsValidLrc(lrc) {
		if strings.TrimSpace(lrc) == "" {
			return nil, nil
		}
		return music.NewLyrics(p.Name(), strings.TrimSpace(lrc), ""), nil
	}
	plain := music.PlainFromLrc(lrc)
	if plain == "" {
		return nil, nil
	}
	return music.NewLyrics(p.Name(), plain, lrc), nil
}
