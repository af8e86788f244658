package config

import "time"

// createDefaultConfig creates a new Config with sensible default values
func createDefaultConfig() *Config {
	return &Config{
		Telegram: Telegram{
			Enabled:      false,
			Token:        "",                                   // Can be obtained with https://t.me/BotFather
			AllowedUsers: []string{"<your_telegram_username>"}, // No @
			BotHandle:    "@<YourTelegramUserBot>",             // With @
		},
		Logger: Logger{
			Enabled: true,
			Level:   "info",
			Format:  "text",
		},
		Server: Server{
			PrintRoutes: false,
			Port:        3535,
			Views:       "./views",
		},
		Database: Database{
			Driver: "sqlite3",
			Path:   "./lyrics.db",
		},
		Cache: Cache{
			TTL: 7 * 24 * time.Hour,
		},
		Lyrics: Lyrics{
			Priority:     []string{"lrclib", "netease", "lyricsovh"},
			RaceDeadline: 8 * time.Second,
			Providers: map[string]LyricsProvider{
				"lrclib":    {Enabled: true},
				"netease":   {Enabled: true},
				"lyricsovh": {Enabled: true},
			},
		},
		HTTP: HTTP{
			ConnectTimeout: 5 * time.Second,
			ReceiveTimeout: 10 * time.Second,
			MaxRetries:     1,
			RetryDelay:     2 * time.Second,
			UserAgent:      "Soullyrics/1.0 (https://github.com/contre95/soullyrics)",
		},
		NowPlaying: NowPlaying{
			Enabled: false,
			MPD: MPD{
				Address:      "localhost:6600",
				PollInterval: time.Second,
			},
		},
		Refresh: Refresh{
			Enabled:   true,
			Interval:  6 * time.Hour,
			BatchSize: 25,
		},
		Metrics: Metrics{
			Enabled:         true,
			CollectInterval: time.Minute,
		},
		Jobs: Jobs{
			Log:       false,
			LogPath:   "./logs/jobs",
			Retention: 24 * time.Hour,
		},
	}
}

// applyDefaults fills zero values left by a partial config file.
func applyDefaults(cfg *Config) {
	def := createDefaultConfig()
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = def.Database.Driver
	}
	if cfg.Database.Driver == "sqlite3" && cfg.Database.Path == "" {
		cfg.Database.Path = def.Database.Path
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.Views == "" {
		cfg.Server.Views = def.Server.Views
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = def.Cache.TTL
	}
	if cfg.Lyrics.RaceDeadline == 0 {
		cfg.Lyrics.RaceDeadline = def.Lyrics.RaceDeadline
	}
	if len(cfg.Lyrics.Providers) == 0 {
		cfg.Lyrics.Providers = def.Lyrics.Providers
	}
	if len(cfg.Lyrics.Priority) == 0 {
		cfg.Lyrics.Priority = def.Lyrics.Priority
	}
	if cfg.HTTP.ConnectTimeout == 0 {
		cfg.HTTP.ConnectTimeout = def.HTTP.ConnectTimeout
	}
	if cfg.HTTP.ReceiveTimeout == 0 {
		cfg.HTTP.ReceiveTimeout = def.HTTP.ReceiveTimeout
	}
	if cfg.HTTP.UserAgent == "" {
		cfg.HTTP.UserAgent = def.HTTP.UserAgent
	}
	if cfg.NowPlaying.MPD.Address == "" {
		cfg.NowPlaying.MPD.Address = def.NowPlaying.MPD.Address
	}
	if cfg.NowPlaying.MPD.PollInterval == 0 {
		cfg.NowPlaying.MPD.PollInterval = def.NowPlaying.MPD.PollInterval
	}
	if cfg.Refresh.Interval == 0 {
		cfg.Refresh.Interval = def.Refresh.Interval
	}
	if cfg.Refresh.BatchSize == 0 {
		cfg.Refresh.BatchSize = def.Refresh.BatchSize
	}
	if cfg.Metrics.CollectInterval == 0 {
		cfg.Metrics.CollectInterval = def.Metrics.CollectInterval
	}
	if cfg.Jobs.LogPath == "" {
		cfg.Jobs.LogPath = def.Jobs.LogPath
	}
	if cfg.Jobs.Retention == 0 {
		cfg.Jobs.Retention = def.Jobs.Retention
	}
}
