package nowplaying

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes registers the now playing routes.
func RegisterRoutes(app *fiber.App, handler *Handler) {
	app.Get("/api/nowplaying", handler.GetNowPlaying)
}
