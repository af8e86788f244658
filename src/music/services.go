package music

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrLyricsNotFound is matched by every NotFoundError.
	ErrLyricsNotFound = errors.New("lyrics not found")

	// ErrCacheEntryNotFound is returned when deleting an id the cache doesn't hold.
	ErrCacheEntryNotFound = errors.New("cache entry not found")
)

// NotFoundError is returned once every provider and fallback stage is exhausted.
type NotFoundError struct {
	Artist string
	Title  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("lyrics not found for %q - %q", e.Artist, e.Title)
}

// Is makes errors.Is(err, ErrLyricsNotFound) work.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrLyricsNotFound
}

// LyricsProvider is implemented by every lyrics source. What a provider can do is
// expressed by the capability interfaces below; a (nil, nil) return from any of
// them means the provider has no match.
type LyricsProvider interface {
	// Name returns the provider identifier used in configuration and results
	Name() string
}

// PlainFetcher fetches unsynced lyrics.
type PlainFetcher interface {
	LyricsProvider
	FetchPlain(ctx context.Context, artist, title string) (*Lyrics, error)
}

// SyncedFetcher fetches LRC lyrics.
type SyncedFetcher interface {
	LyricsProvider
	FetchSynced(ctx context.Context, artist, title string) (*Lyrics, error)
}

// Searcher runs a fuzzy query. Results are ranked, best match first.
type Searcher interface {
	LyricsProvider
	Search(ctx context.Context, query string) ([]*Lyrics, error)
}

// ProviderInfo describes a configured provider for the API and the bot.
type ProviderInfo struct {
	Name     string `json:"name"`
	Enabled  bool   `json:"enabled"`
	Priority int    `json:"priority"`
	Plain    bool   `json:"plain"`
	Synced   bool   `json:"synced"`
	Search   bool   `json:"search"`
}

// Capabilities inspects which capability interfaces a provider implements.
func Capabilities(p LyricsProvider) (plain, synced, search bool) {
	_, plain = p.(PlainFetcher)
	_, synced = p.(SyncedFetcher)
	_, search = p.(Searcher)
	return plain, synced, search
}

// LyricsCache is the persistent fingerprint -> Lyrics store.
type LyricsCache interface {
	// Get returns nil, nil on a miss
	Get(ctx context.Context, fingerprint string) (*Lyrics, error)
	// Put upserts by SongID, last write wins
	Put(ctx context.Context, lyrics *Lyrics) error
	GetAll(ctx context.Context) ([]*Lyrics, error)
	// Delete removes the entry with the given Lyrics.ID
	Delete(ctx context.Context, lyricsID string) error
	// SearchText is a case-insensitive substring match over text and metadata
	SearchText(ctx context.Context, query string) ([]*Lyrics, error)
	Close() error
}
