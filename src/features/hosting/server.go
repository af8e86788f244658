package hosting

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"

	"github.com/contre95/soullyrics/src/features/config"
	"github.com/contre95/soullyrics/src/features/jobs"
	"github.com/contre95/soullyrics/src/features/lyrics"
	"github.com/contre95/soullyrics/src/features/metrics"
	"github.com/contre95/soullyrics/src/features/nowplaying"
)

// Server is the HTTP server for the application.
type Server struct {
	app  *fiber.App
	port uint32
}

// NewServer creates a new HTTP server. nowPlayingService and recorder may be nil
// when those features are disabled.
func NewServer(cfg *config.Manager, lyricsService *lyrics.Service, jobService *jobs.Service, metricsService *metrics.Service, recorder *metrics.Recorder, nowPlayingService *nowplaying.Service) *Server {
	engine := html.New(cfg.Get().Server.Views, ".html")
	engine.Debug(cfg.Get().Logger.Level == "debug")
	engine.AddFunc("add", func(a, b int) int {
		return a + b
	})
	engine.AddFunc("timestamp", func(d time.Duration) string {
		total := int(d / (10 * time.Millisecond))
		return fmt.Sprintf("%02d:%02d.%02d", total/6000, total/100%60, total%100)
	})
	engine.AddFunc("millis", func(d time.Duration) int64 {
		return d.Milliseconds()
	})

	app := fiber.New(fiber.Config{
		Views: engine,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			slog.Error("Internal Server Error", "error", err)
			return c.Status(fiber.StatusInternalServerError).SendString(err.Error())
		},
		AppName:               "Soullyrics",
		DisableStartupMessage: true,
		EnablePrintRoutes:     cfg.Get().Server.PrintRoutes,
	})

	app.Use(LogAllRequestsMiddleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/ui/lyrics")
	})

	config.RegisterRoutes(app, cfg)
	lyrics.RegisterRoutes(app, lyrics.NewHandler(lyricsService))
	jobs.RegisterRoutes(app, jobService)
	if metricsService != nil && recorder != nil {
		metrics.RegisterRoutes(app, metrics.NewHandler(metricsService), recorder)
	}
	if nowPlayingService != nil {
		nowplaying.RegisterRoutes(app, nowplaying.NewHandler(nowPlayingService))
	}

	return &Server{app: app, port: cfg.Get().Server.Port}
}

// App exposes the underlying fiber app, used by tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.app.Listen(":" + fmt.Sprint(s.port))
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
