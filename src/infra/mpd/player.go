// Package mpd reads playback state from a Music Player Daemon.
package mpd

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"

	"github.com/contre95/soullyrics/src/music"
)

// Player is a music.Player backed by MPD. The connection is opened lazily and
// re-established after a failed ping.
type Player struct {
	mu       sync.Mutex
	client   *mpd.Client
	address  string
	password string
}

// NewPlayer creates an MPD player for address (host:port).
func NewPlayer(address, password string) *Player {
	return &Player{address: address, password: password}
}

// Name returns the player name.
func (p *Player) Name() string { return "mpd" }

// connectLocked must be called with p.mu held.
func (p *Player) connectLocked() error {
	slog.Debug("Connecting to MPD", "address", p.address)
	var (
		client *mpd.Client
		err    error
	)
	if p.password != "" {
		client, err = mpd.DialAuthenticated("tcp", p.address, p.password)
	} else {
		client, err = mpd.Dial("tcp", p.address)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to MPD at %s: %w", p.address, err)
	}
	p.client = client
	slog.Info("Connected to MPD", "address", p.address)
	return nil
}

func (p *Player) ensureConnectedLocked() error {
	if p.client == nil {
		return p.connectLocked()
	}
	if err := p.client.Ping(); err != nil {
		slog.Warn("MPD connection lost, reconnecting", "error", err)
		p.client.Close()
		p.client = nil
		return p.connectLocked()
	}
	return nil
}

// State returns the current song and elapsed time. It returns nil when MPD is stopped.
func (p *Player) State(ctx context.Context) (*music.PlayerState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureConnectedLocked(); err != nil {
		return nil, err
	}
	status, err := p.client.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to read MPD status: %w", err)
	}
	if status["state"] == "stop" {
		return nil, nil
	}
	current, err := p.client.CurrentSong()
	if err != nil {
		return nil, fmt.Errorf("failed to read MPD current song: %w", err)
	}
	if len(current) == 0 {
		return nil, nil
	}
	return stateFromAttrs(status, current), nil
}

// Close closes the MPD connection.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}

func stateFromAttrs(status, current mpd.Attrs) *music.PlayerState {
	artist := current["Artist"]
	if artist == "" {
		artist = current["AlbumArtist"]
	}
	title := current["Title"]
	if title == "" {
		title = current["Name"] // streams
	}
	song := music.NewSong(artist, title, current["Album"]).WithSource("mpd")
	if d := parseSeconds(current["duration"]); d > 0 {
		song = song.WithDuration(d)
	} else if d := parseSeconds(current["Time"]); d > 0 {
		song = song.WithDuration(d)
	}

	elapsed := parseSeconds(status["elapsed"])
	if elapsed == 0 {
		// older servers only report "time" as elapsed:total
		if e, _, ok := strings.Cut(status["time"], ":"); ok {
			elapsed = parseSeconds(e)
		}
	}
	return &music.PlayerState{
		Song:     song,
		Position: elapsed,
		Playing:  status["state"] == "play",
		File:     current["file"],
	}
}

func parseSeconds(s string) time.Duration {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}
