package config

import (
	"sort"
	"time"
)

// Config holds the application configuration.
type Config struct {
	Telegram   Telegram   `yaml:"telegram"`
	Logger     Logger     `yaml:"logger"`
	Server     Server     `yaml:"server"`
	Database   Database   `yaml:"database"`
	Cache      Cache      `yaml:"cache"`
	Lyrics     Lyrics     `yaml:"lyrics"`
	HTTP       HTTP       `yaml:"http"`
	NowPlaying NowPlaying `yaml:"nowplaying"`
	Refresh    Refresh    `yaml:"refresh"`
	Metrics    Metrics    `yaml:"metrics"`
	Jobs       Jobs       `yaml:"jobs"`
}

// Database selects the cache backend
type Database struct {
	Driver    string `yaml:"driver" validate:"oneof=sqlite3 libsql redis"`
	Path      string `yaml:"path" validate:"required_if=Driver sqlite3"`
	URL       string `yaml:"url,omitempty" validate:"required_if=Driver libsql,required_if=Driver redis"`
	Password  string `yaml:"password,omitempty"`   // redis
	AuthToken string `yaml:"auth_token,omitempty"` // libsql
}

// Cache holds how long a cached result stays fresh
type Cache struct {
	TTL time.Duration `yaml:"ttl" validate:"gte=0"`
}

// Server hold the configuration for the Fiber server Config
type Server struct {
	PrintRoutes bool   `yaml:"show_routes"`
	Port        uint32 `yaml:"port" validate:"required"`
	Views       string `yaml:"views"`
}

// Logger holds the configuration for the app logging
type Logger struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format  string `yaml:"format" validate:"omitempty,oneof=json text logfmt"`
}

type Telegram struct {
	Enabled      bool     `yaml:"enabled"`
	Token        string   `yaml:"token" validate:"required_if=Enabled true"`
	AllowedUsers []string `yaml:"allowedUsers"`
	BotHandle    string   `yaml:"bot_handle"`
}

// Lyrics holds the configuration for lyrics providers and the fetch pipeline
type Lyrics struct {
	// Priority orders providers; the first entry launches first in the race and
	// is tried first in the fallbacks
	Priority     []string                  `yaml:"priority"`
	RaceDeadline time.Duration             `yaml:"race_deadline" validate:"gt=0"`
	Providers    map[string]LyricsProvider `yaml:"providers" validate:"dive"`
}

// LyricsProvider holds configuration for individual lyric providers
type LyricsProvider struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url,omitempty" validate:"omitempty,url"`
}

// HTTP holds the transport policy applied to every provider
type HTTP struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout" validate:"gt=0"`
	ReceiveTimeout time.Duration `yaml:"receive_timeout" validate:"gt=0"`
	MaxRetries     int           `yaml:"max_retries" validate:"gte=0,lte=10"`
	RetryDelay     time.Duration `yaml:"retry_delay" validate:"gte=0"`
	UserAgent      string        `yaml:"user_agent"`
}

// NowPlaying configures the player the lyrics follow
type NowPlaying struct {
	Enabled bool `yaml:"enabled"`
	MPD     MPD  `yaml:"mpd"`
}

type MPD struct {
	Address      string        `yaml:"address" validate:"required"`
	Password     string        `yaml:"password,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval" validate:"gte=0"`
	// MusicDir is MPD's music_directory, used to read tags when MPD reports none
	MusicDir string `yaml:"music_dir,omitempty"`
}

// Refresh configures the background job that retries stale unsynced entries
type Refresh struct {
	Enabled   bool          `yaml:"enabled"`
	Interval  time.Duration `yaml:"interval" validate:"required_if=Enabled true"`
	BatchSize int           `yaml:"batch_size" validate:"gte=0"`
}

// Jobs configures tracked background jobs
type Jobs struct {
	Log       bool          `yaml:"log"`
	LogPath   string        `yaml:"log_path" validate:"required_if=Log true"`
	Retention time.Duration `yaml:"retention" validate:"gte=0"`
}

type Metrics struct {
	Enabled         bool          `yaml:"enabled"`
	CollectInterval time.Duration `yaml:"collect_interval" validate:"gte=0"`
}

// EnabledProviders returns enabled provider names, priority list first and the
// remaining enabled providers after it in name order.
func (c *Config) EnabledProviders() []string {
	seen := make(map[string]bool, len(c.Lyrics.Providers))
	names := []string{}
	for _, name := range c.Lyrics.Priority {
		if seen[name] {
			continue
		}
		seen[name] = true
		if p, ok := c.Lyrics.Providers[name]; ok && p.Enabled {
			names = append(names, name)
		}
	}
	rest := []string{}
	for name, p := range c.Lyrics.Providers {
		if !seen[name] && p.Enabled {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// ProviderRank returns the 1-based position of name in the priority order, or 0
// when the provider is disabled.
func (c *Config) ProviderRank(name string) int {
	for i, n := range c.EnabledProviders() {
		if n == name {
			return i + 1
		}
	}
	return 0
}
