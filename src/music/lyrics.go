package music

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultCacheTTL is how long a cached result is considered fresh.
const DefaultCacheTTL = 7 * 24 * time.Hour

// Lyrics is the canonical resolved result, whatever provider it came from.
type Lyrics struct {
	ID          string    `json:"id"`
	SongID      string    `json:"songId"` // Fingerprint, not Song.ID
	Artist      string    `json:"artist,omitempty"`
	Title       string    `json:"title,omitempty"`
	PlainLyrics string    `json:"plainLyrics"`
	LrcLyrics   *string   `json:"lrcLyrics,omitempty"`
	IsSynced    bool      `json:"isSynced"`
	Source      string    `json:"source"`
	FetchedAt   time.Time `json:"fetchedAt"`
}

// NewLyrics returns a provider result. Adapters call it with whatever they got back;
// an empty lrc string is treated as absent.
func NewLyrics(source, plain, lrc string) *Lyrics {
	l := &Lyrics{
		PlainLyrics: plain,
		Source:      source,
	}
	if strings.TrimSpace(lrc) != "" {
		l.LrcLyrics = &lrc
	}
	l.IsSynced = l.LrcLyrics != nil && IsValidLrc(*l.LrcLyrics)
	return l
}

// Lines returns the plain text split on line breaks with blank lines dropped.
func (l *Lyrics) Lines() []string {
	if l == nil {
		return nil
	}
	raw := strings.Split(strings.ReplaceAll(l.PlainLyrics, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// IsEmpty reports whether the result carries no usable text.
func (l *Lyrics) IsEmpty() bool {
	return l == nil || strings.TrimSpace(l.PlainLyrics) == ""
}

// Lrc returns the raw LRC text or an empty string.
func (l *Lyrics) Lrc() string {
	if l == nil || l.LrcLyrics == nil {
		return ""
	}
	return *l.LrcLyrics
}

// Parsed parses the LRC payload. Unsynced lyrics parse to an empty index.
func (l *Lyrics) Parsed() ParsedLrc {
	if l == nil || !l.IsSynced {
		return ParsedLrc{}
	}
	return ParseLrc(*l.LrcLyrics)
}

// IsStale reports whether the entry is older than ttl.
func (l *Lyrics) IsStale(ttl time.Duration, now time.Time) bool {
	if l == nil {
		return true
	}
	if ttl <= 0 {
		return false
	}
	return now.Sub(l.FetchedAt) > ttl
}

// Normalize turns a provider result into the persisted shape: it stamps identity,
// keeps the synced flag honest and derives plain text from LRC when a provider
// only returned synced lines.
func (l *Lyrics) Normalize(songID string, now time.Time) {
	l.SongID = songID
	if l.ID == "" {
		l.ID = newLyricsID()
	}
	if l.FetchedAt.IsZero() {
		l.FetchedAt = now
	}
	if l.LrcLyrics != nil && strings.TrimSpace(*l.LrcLyrics) == "" {
		l.LrcLyrics = nil
	}
	l.IsSynced = l.LrcLyrics != nil && IsValidLrc(*l.LrcLyrics)
	if strings.TrimSpace(l.PlainLyrics) == "" && l.IsSynced {
		l.PlainLyrics = PlainFromLrc(*l.LrcLyrics)
	}
}

// newLyricsID returns a time-ordered id, falling back to a random one.
func newLyricsID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
