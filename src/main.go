package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/contre95/soullyrics/src/features/config"
	"github.com/contre95/soullyrics/src/features/hosting"
	"github.com/contre95/soullyrics/src/features/jobs"
	"github.com/contre95/soullyrics/src/features/logging"
	"github.com/contre95/soullyrics/src/features/lyrics"
	"github.com/contre95/soullyrics/src/features/metrics"
	"github.com/contre95/soullyrics/src/features/nowplaying"
	"github.com/contre95/soullyrics/src/infra/database"
	"github.com/contre95/soullyrics/src/infra/mpd"
	"github.com/contre95/soullyrics/src/infra/providers"
	"github.com/contre95/soullyrics/src/infra/tag"
	"github.com/contre95/soullyrics/src/music"
)

// buildProviders creates every known adapter with the configured transport policy.
// Disabled adapters are built too so they can be listed.
func buildProviders(cfg *config.Config) []music.LyricsProvider {
	settings := providers.HTTPSettings{
		ConnectTimeout: cfg.HTTP.ConnectTimeout,
		ReceiveTimeout: cfg.HTTP.ReceiveTimeout,
		MaxRetries:     cfg.HTTP.MaxRetries,
		RetryDelay:     cfg.HTTP.RetryDelay,
		UserAgent:      cfg.HTTP.UserAgent,
	}
	var built []music.LyricsProvider
	for _, name := range providers.Known {
		p, err := providers.New(name,
			providers.WithSettings(settings),
			providers.WithBaseURL(cfg.Lyrics.Providers[name].BaseURL),
		)
		if err != nil {
			slog.Error("Failed to create lyrics provider", "provider", name, "error", err)
			continue
		}
		built = append(built, p)
	}
	for name := range cfg.Lyrics.Providers {
		if _, err := providers.New(name); err != nil {
			slog.Warn("Ignoring unknown lyrics provider in config", "provider", name)
		}
	}
	return built
}

// printFileLyrics resolves lyrics for the tags of an audio file and writes them to stdout.
func printFileLyrics(ctx context.Context, service *lyrics.Service, path string) error {
	song, embedded, err := tag.NewTagReader().ReadSong(ctx, path)
	if err != nil {
		return err
	}
	l, err := service.Resolve(ctx, song)
	if errors.Is(err, music.ErrLyricsNotFound) && embedded != nil {
		slog.Info("Using lyrics embedded in file", "path", path)
		l, err = embedded, nil
	}
	if err != nil {
		return err
	}
	if l.IsSynced {
		fmt.Println(l.Lrc())
		return nil
	}
	fmt.Println(l.PlainLyrics)
	return nil
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	filePath := flag.String("file", "", "print lyrics for the tags of this audio file and exit")
	flag.Parse()

	// Load configuration
	cfgManager, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Setup default logger with slog
	logger := logging.SetupLogger(cfgManager)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := cfgManager.Get()

	// Open the lyrics cache
	cache, err := database.Open(ctx, database.Options{
		Driver:    cfg.Database.Driver,
		Path:      cfg.Database.Path,
		URL:       cfg.Database.URL,
		Password:  cfg.Database.Password,
		AuthToken: cfg.Database.AuthToken,
	})
	if err != nil {
		log.Fatalf("failed to open lyrics cache: %v", err)
	}
	defer cache.Close()

	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		recorder = metrics.NewRecorder()
	}

	lyricsService := lyrics.NewService(cache, buildProviders(cfg), cfgManager, recorder)
	// Transport settings are fixed per adapter, so a reload rebuilds them
	cfgManager.OnChange(func(c *config.Config) {
		slog.SetDefault(logging.SetupLogger(cfgManager))
		lyricsService.SetProviders(buildProviders(c))
	})

	if *filePath != "" {
		if err := printFileLyrics(ctx, lyricsService, *filePath); err != nil {
			log.Fatalf("failed to get lyrics for %s: %v", *filePath, err)
		}
		return
	}

	go func() {
		if err := cfgManager.Watch(ctx, *configPath); err != nil {
			slog.Error("Config watcher stopped", "error", err)
		}
	}()

	var metricsService *metrics.Service
	if recorder != nil {
		metricsService = metrics.NewService(cache, recorder, cfgManager)
		go metricsService.RunCollector(ctx, cfg.Metrics.CollectInterval)
	}

	jobService := jobs.NewService(cfgManager)
	jobService.RegisterTask(lyrics.RefreshJobType, lyricsService.RefreshTask())
	if cfg.Refresh.Enabled {
		go jobService.Schedule(ctx, lyrics.RefreshJobType, cfg.Refresh.Interval)
	}

	var nowPlayingService *nowplaying.Service
	if cfg.NowPlaying.Enabled {
		mpdCfg := cfg.NowPlaying.MPD
		player := mpd.NewPlayer(mpdCfg.Address, mpdCfg.Password)
		nowPlayingService = nowplaying.NewService(player, lyricsService, tag.NewTagReader(), mpdCfg.MusicDir)
		go nowPlayingService.Run(ctx, mpdCfg.PollInterval)
	}

	// Create and start the Telegram bot if enabled
	var telegramBot *hosting.TelegramBot
	if cfg.Telegram.Enabled {
		telegramBot, err = hosting.NewTelegramBot(cfgManager, lyricsService, jobService, nowPlayingService)
		if err != nil {
			slog.Error("Failed to initialize Telegram bot", "error", err)
		} else {
			go telegramBot.Start()
			slog.Info("Telegram bot started")
		}
	}

	// Create and start the HTTP server
	server := hosting.NewServer(cfgManager, lyricsService, jobService, metricsService, recorder, nowPlayingService)
	go func() {
		if err := server.Start(); err != nil {
			slog.Error("Server stopped", "error", err)
			stop()
		}
	}()
	slog.Info("Server started. Press Ctrl+C to shut down.", "port", cfg.Server.Port)

	// Wait for a shutdown signal
	<-ctx.Done()
	slog.Info("Shutting down server...")

	if telegramBot != nil {
		telegramBot.Stop()
		slog.Info("Telegram bot stopped")
	}

	if err := server.Shutdown(); err != nil {
		log.Fatalf("failed to shutdown server: %v", err)
	}
	slog.Info("Server gracefully shut down.")
}
