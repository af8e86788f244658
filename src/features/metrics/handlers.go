package metrics

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// Handler serves cache statistics.
type Handler struct {
	service *Service
}

// NewHandler creates a new metrics handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetCacheStats returns the cache summary as JSON.
func (h *Handler) GetCacheStats(c *fiber.Ctx) error {
	stats, err := h.service.CacheStats(c.Context())
	if err != nil {
		slog.Error("Failed to compute cache stats", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to compute cache stats"})
	}
	return c.JSON(stats)
}
