package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// RegisterRoutes registers the metrics routes with the Fiber app.
func RegisterRoutes(app *fiber.App, handler *Handler, recorder *Recorder) {
	// Prometheus scrape endpoint
	app.Get("/metrics", adaptor.HTTPHandler(recorder.Handler()))

	api := app.Group("/api/metrics")
	api.Get("/cache", handler.GetCacheStats)
}
