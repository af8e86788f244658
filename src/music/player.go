package music

import (
	"context"
	"time"
)

// PlayerState is a snapshot of what a media player is doing.
type PlayerState struct {
	Song     Song          `json:"song"`
	Position time.Duration `json:"position"`
	Playing  bool          `json:"playing"`
	File     string        `json:"file,omitempty"` // Player-relative path when known
}

// Player is a media-detection source.
type Player interface {
	Name() string
	// State returns nil, nil when nothing is loaded
	State(ctx context.Context) (*PlayerState, error)
	Close() error
}

// TagReader reads song identity, and embedded lyrics when present, from an audio file.
type TagReader interface {
	ReadSong(ctx context.Context, path string) (Song, *Lyrics, error)
}
