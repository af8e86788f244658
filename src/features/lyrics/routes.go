package lyrics

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes registers lyrics routes
func RegisterRoutes(app *fiber.App, handler *Handler) {
	app.Get("/ui/lyrics", handler.RenderLyrics)

	lyricsAPI := app.Group("/api/lyrics")
	lyricsAPI.Get("/", handler.GetLyrics)
	lyricsAPI.Get("/line", handler.GetLine)
	lyricsAPI.Get("/providers", handler.GetProviders)

	cache := lyricsAPI.Group("/cache")
	cache.Get("/", handler.GetCached)
	cache.Get("/search", handler.SearchCached)
	cache.Delete("/:id", handler.DeleteCached)
}
