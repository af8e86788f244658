package tag

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dhowden/tag"

	"github.com/contre95/soullyrics/src/music"
)

// EmbeddedSource is the Lyrics.Source of lyrics read from file tags.
const EmbeddedSource = "embedded"

// lyric field names used by the different tag formats
var lyricFields = []string{"LYRICS", "UNSYNCEDLYRICS", "USLT", "USLT0", "USLT1", "Lyrics", "UnsyncedLyrics", "©lyr"}

// TagReader reads songs from audio files using the dhowden/tag library.
type TagReader struct{}

// NewTagReader creates a new TagReader
func NewTagReader() *TagReader {
	return &TagReader{}
}

// ReadSong reads the artist, title and album of a file. The second return value
// holds embedded lyrics, nil when the file has none.
func (r *TagReader) ReadSong(ctx context.Context, filePath string) (music.Song, *music.Lyrics, error) {
	if err := ctx.Err(); err != nil {
		return music.Song{}, nil, err
	}
	file, err := os.Open(filePath)
	if err != nil {
		return music.Song{}, nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	tags, err := tag.ReadFrom(file)
	if err != nil {
		return music.Song{}, nil, fmt.Errorf("failed to read tags: %w", err)
	}

	artist := tags.Artist()
	if artist == "" {
		artist = tags.AlbumArtist()
	}
	song := music.NewSong(artist, tags.Title(), tags.Album()).WithSource("file")
	if err := song.Validate(); err != nil {
		return music.Song{}, nil, fmt.Errorf("file %s has no usable tags: %w", filePath, err)
	}

	text := tags.Lyrics()
	if text == "" {
		text = readRawLyrics(tags)
	}
	if strings.TrimSpace(text) == "" {
		return song, nil, nil
	}
	// Some taggers store LRC in the plain lyrics field
	if music.IsValidLrc(text) {
		return song, music.NewLyrics(EmbeddedSource, "", text), nil
	}
	return song, music.NewLyrics(EmbeddedSource, text, ""), nil
}

// readRawLyrics looks for lyrics in format-specific raw fields.
func readRawLyrics(tags tag.Metadata) string {
	raw := tags.Raw()
	if raw == nil {
		return ""
	}
	for _, field := range lyricFields {
		switch v := raw[field].(type) {
		case string:
			if v != "" {
				return v
			}
		case []byte:
			if len(v) > 0 {
				return string(v)
			}
		case *tag.Comm:
			if v != nil && v.Text != "" {
				return v.Text
			}
		}
	}
	return ""
}
