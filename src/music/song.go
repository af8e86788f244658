package music

import (
	"crypto/md5"
	"fmt"
	"strings"
	"time"
)

// Song is the identity of a track as reported by whatever is playing it.
// Values are replaced wholesale when a new track is detected, never mutated.
type Song struct {
	ID         string
	Title      string
	Artist     string
	Album      string
	ArtworkURL string
	Duration   time.Duration
	Source     string // Originating app or player name
}

// NewSong builds a Song and derives its ID from artist, title and album.
func NewSong(artist, title, album string) Song {
	artist = strings.TrimSpace(artist)
	title = strings.TrimSpace(title)
	album = strings.TrimSpace(album)
	return Song{
		ID:     songID(artist, title, album),
		Title:  title,
		Artist: artist,
		Album:  album,
	}
}

// WithDuration returns a copy of the song with the given duration.
func (s Song) WithDuration(d time.Duration) Song {
	s.Duration = d
	return s
}

// WithSource returns a copy of the song tagged with the app it came from.
func (s Song) WithSource(source string) Song {
	s.Source = source
	return s
}

// Fingerprint returns the cache key for this song.
func (s Song) Fingerprint() string {
	return Fingerprint(s.Artist, s.Title)
}

// Validate checks that the song carries enough information to look up lyrics.
func (s Song) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("song title cannot be empty")
	}
	if len(s.Title) > 500 {
		return fmt.Errorf("title cannot exceed 500 characters, got %d: title -> %s", len(s.Title), s.Title)
	}
	if len(s.Artist) > 500 {
		return fmt.Errorf("artist cannot exceed 500 characters, got %d: artist -> %s", len(s.Artist), s.Artist)
	}
	return nil
}

// String is used in logs.
func (s Song) String() string {
	if s.Artist == "" {
		return s.Title
	}
	return s.Artist + " - " + s.Title
}

func songID(artist, title, album string) string {
	data := artist + "\x00" + title + "\x00" + album
	return fmt.Sprintf("%x", md5.Sum([]byte(data)))
}
