package providers

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/contre95/soullyrics/src/music"
)

// DefaultLRCLibBaseURL is the public LRCLib instance
const DefaultLRCLibBaseURL = "https://lrclib.net"

// LRCLib API response structures
type lrclibSong struct {
	ID           int     `json:"id"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

// LRCLibProvider implements plain, synced and search lookups against LRCLib.
type LRCLibProvider struct {
	*client
}

// NewLRCLibProvider creates a new LRCLib provider
func NewLRCLibProvider(opts ...Option) *LRCLibProvider {
	return &LRCLibProvider{client: newClient("lrclib", DefaultLRCLibBaseURL, opts...)}
}

func (p *LRCLibProvider) Name() string { return "lrclib" }

// get hits the exact-match endpoint. LRCLib answers 404 when the track is unknown.
func (p *LRCLibProvider) get(ctx context.Context, artist, title string) (*lrclibSong, error) {
	if strings.TrimSpace(title) == "" {
		return nil, nil
	}
	query := url.Values{}
	query.Set("artist_name", artist)
	query.Set("track_name", title)

	var song lrclibSong
	found, err := p.getJSON(ctx, "/api/get", query, &song)
	if err != nil {
		return nil, fmt.Errorf("lrclib get: %w", err)
	}
	if !found || song.Instrumental {
		return nil, nil
	}
	return &song, nil
}

// FetchSynced returns LRC lyrics, or nil when LRCLib only has plain text.
func (p *LRCLibProvider) FetchSynced(ctx context.Context, artist, title string) (*music.Lyrics, error) {
	song, err := p.get(ctx, artist, title)
	if err != nil || song == nil {
		return nil, err
	}
	lyrics := music.NewLyrics(p.Name(), song.PlainLyrics, song.SyncedLyrics)
	if !lyrics.IsSynced {
		slog.Debug("LRCLib returned no usable synced lyrics", "artist", artist, "title", title)
		return nil, nil
	}
	return lyrics, nil
}

// FetchPlain returns plain lyrics, deriving them from the synced text when needed.
func (p *LRCLibProvider) FetchPlain(ctx context.Context, artist, title string) (*music.Lyrics, error) {
	song, err := p.get(ctx, artist, title)
	if err != nil || song == nil {
		return nil, err
	}
	return p.toLyrics(song), nil
}

// Search runs a free-text query. Results keep LRCLib's ranking.
func (p *LRCLibProvider) Search(ctx context.Context, q string) ([]*music.Lyrics, error) {
	if strings.TrimSpace(q) == "" {
		return nil, nil
	}
	query := url.Values{}
	query.Set("q", q)

	var songs []lrclibSong
	found, err := p.getJSON(ctx, "/api/search", query, &songs)
	if err != nil {
		return nil, fmt.Errorf("lrclib search: %w", err)
	}
	if !found {
		return nil, nil
	}

	results := make([]*music.Lyrics, 0, len(songs))
	for i := range songs {
		if songs[i].Instrumental {
			continue
		}
		if l := p.toLyrics(&songs[i]); l != nil {
			results = append(results, l)
		}
	}
	return results, nil
}

func (p *LRCLibProvider) toLyrics(song *lrclibSong) *music.Lyrics {
	plain := song.PlainLyrics
	if strings.TrimSpace(plain) == "" && song.SyncedLyrics != "" {
		plain = music.PlainFromLrc(song.SyncedLyrics)
	}
	if strings.TrimSpace(plain) == "" {
		return nil
	}
	return music.NewLyrics(p.Name(), plain, song.SyncedLyrics)
}
