package nowplaying

import (
	"github.com/gofiber/fiber/v2"
)

// Handler serves the now playing state.
type Handler struct {
	service *Service
}

// NewHandler creates a new now playing handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetNowPlaying returns the current song, estimated position and active lyric line.
func (h *Handler) GetNowPlaying(c *fiber.Ctx) error {
	snap := h.service.Current()
	if snap == nil {
		return c.JSON(fiber.Map{"playing": false})
	}
	pos := snap.Position(h.service.now())
	resp := fiber.Map{
		"playing":    snap.State.Playing,
		"song":       snap.State.Song,
		"positionMs": pos.Milliseconds(),
		"lyrics":     snap.Lyrics,
	}
	if snap.Error != "" {
		resp["error"] = snap.Error
	}
	if snap.Lyrics != nil && snap.Lyrics.IsSynced {
		parsed := snap.Lyrics.Parsed()
		if i := parsed.LineIndexAt(pos); i >= 0 {
			resp["line"] = fiber.Map{
				"index":  i,
				"timeMs": parsed.Lines[i].Timestamp.Milliseconds(),
				"text":   parsed.Lines[i].Text,
			}
		}
	}
	return c.JSON(resp)
}
