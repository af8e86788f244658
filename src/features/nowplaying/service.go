package nowplaying

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/contre95/soullyrics/src/music"
)

// Resolver looks up lyrics for a song.
type Resolver interface {
	Resolve(ctx context.Context, song music.Song) (*music.Lyrics, error)
}

// Snapshot is the last observed player state with its lyrics.
type Snapshot struct {
	State    music.PlayerState `json:"state"`
	Lyrics   *music.Lyrics     `json:"lyrics,omitempty"`
	Error    string            `json:"error,omitempty"`
	PolledAt time.Time         `json:"polledAt"`
}

// Position estimates the playback position at now, assuming playback continued
// since the last poll.
func (s *Snapshot) Position(now time.Time) time.Duration {
	pos := s.State.Position
	if s.State.Playing {
		pos += now.Sub(s.PolledAt)
	}
	if d := s.State.Song.Duration; d > 0 && pos > d {
		pos = d
	}
	return pos
}

// Service follows a media player and keeps lyrics for whatever is playing.
type Service struct {
	player   music.Player
	resolver Resolver
	tags     music.TagReader
	musicDir string

	mu      sync.RWMutex
	current *Snapshot
	now     func() time.Time
}

// NewService creates a new now playing service. tags may be nil, in which case
// files without player metadata are skipped.
func NewService(player music.Player, resolver Resolver, tags music.TagReader, musicDir string) *Service {
	return &Service{
		player:   player,
		resolver: resolver,
		tags:     tags,
		musicDir: musicDir,
		now:      time.Now,
	}
}

// Current returns the last snapshot, nil when nothing is playing.
func (s *Service) Current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Poll reads the player once. Lyrics are only resolved when the song changes.
func (s *Service) Poll(ctx context.Context) error {
	state, err := s.player.State(ctx)
	if err != nil {
		return err
	}
	now := s.now()
	if state == nil {
		s.mu.Lock()
		if s.current != nil {
			slog.Debug("Playback stopped", "player", s.player.Name())
		}
		s.current = nil
		s.mu.Unlock()
		return nil
	}

	prev := s.Current()
	if prev != nil && sameTrack(prev.State, *state) {
		next := *prev
		next.State.Position = state.Position
		next.State.Playing = state.Playing
		next.PolledAt = now
		s.mu.Lock()
		s.current = &next
		s.mu.Unlock()
		return nil
	}

	snap := &Snapshot{State: *state, PolledAt: now}
	var embedded *music.Lyrics
	if state.Song.Title == "" {
		snap.State.Song, embedded = s.songFromFile(ctx, state)
	}
	slog.Info("Now playing", "player", s.player.Name(), "song", snap.State.Song.String())

	if snap.State.Song.Title != "" {
		l, err := s.resolver.Resolve(ctx, snap.State.Song)
		switch {
		case err == nil:
			snap.Lyrics = l
		case errors.Is(err, music.ErrLyricsNotFound) && embedded != nil:
			snap.Lyrics = embedded
		default:
			snap.Error = err.Error()
			slog.Warn("No lyrics for current song", "song", snap.State.Song.String(), "error", err)
		}
	}
	// Resolving may have taken a while
	snap.PolledAt = s.now()

	s.mu.Lock()
	s.current = snap
	s.mu.Unlock()
	return nil
}

// songFromFile fills in a song from file tags when the player had none.
func (s *Service) songFromFile(ctx context.Context, state *music.PlayerState) (music.Song, *music.Lyrics) {
	if s.tags == nil || state.File == "" || s.musicDir == "" {
		return state.Song, nil
	}
	path := filepath.Join(s.musicDir, filepath.FromSlash(state.File))
	song, embedded, err := s.tags.ReadSong(ctx, path)
	if err != nil {
		slog.Debug("Could not read tags of playing file", "path", path, "error", err)
		return state.Song, nil
	}
	return song.WithDuration(state.Song.Duration).WithSource(state.Song.Source), embedded
}

// Run polls the player every interval until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	slog.Info("Following player", "player", s.player.Name(), "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := s.Poll(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("Failed to poll player", "player", s.player.Name(), "error", err)
		}
		select {
		case <-ctx.Done():
			if err := s.player.Close(); err != nil {
				slog.Warn("Failed to close player", "error", err)
			}
			slog.Info("Stopped following player", "player", s.player.Name())
			return
		case <-ticker.C:
		}
	}
}

func sameTrack(a, b music.PlayerState) bool {
	if a.File != "" || b.File != "" {
		return a.File == b.File
	}
	return a.Song.ID == b.Song.ID
}
