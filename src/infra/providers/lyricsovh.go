package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/contre95/soullyrics/src/music"
)

// DefaultLyricsOvhBaseURL is the public lyrics.ovh API
const DefaultLyricsOvhBaseURL = "https://api.lyrics.ovh"

type lyricsOvhResponse struct {
	Lyrics string `json:"lyrics"`
	Error  string `json:"error"`
}

// LyricsOvhProvider serves plain lyrics only.
type LyricsOvhProvider struct {
	*client
}

// NewLyricsOvhProvider creates a new lyrics.ovh provider
func NewLyricsOvhProvider(opts ...Option) *LyricsOvhProvider {
	return &LyricsOvhProvider{client: newClient("lyricsovh", DefaultLyricsOvhBaseURL, opts...)}
}

func (p *LyricsOvhProvider) Name() string { return "lyricsovh" }

func (p *LyricsOvhProvider) FetchPlain(ctx context.Context, artist, title string) (*music.Lyrics, error) {
	if strings.TrimSpace(artist) == "" || strings.TrimSpace(title) == "" {
		return nil, nil
	}
	path := "/v1/" + url.PathEscape(artist) + "/" + url.PathEscape(title)

	var resp lyricsOvhResponse
	found, err := p.getJSON(ctx, path, nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("lyricsovh: %w", err)
	}
	if !found || resp.Error != "" {
		return nil, nil
	}
	// lyrics.ovh pads paragraphs with \r\n and doubles blank lines
	plain := strings.TrimSpace(strings.ReplaceAll(resp.Lyrics, "\r\n", "\n"))
	if plain == "" {
		return nil, nil
	}
	return music.NewLyrics(p.Name(), plain, ""), nil
}
