package lyrics

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/contre95/soullyrics/src/music"
)

// Handler handles lyrics requests
type Handler struct {
	service *Service
}

// NewHandler creates a new lyrics handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetLyrics resolves lyrics for ?artist=&title=.
func (h *Handler) GetLyrics(c *fiber.Ctx) error {
	song := music.NewSong(c.Query("artist"), c.Query("title"), c.Query("album"))
	if err := song.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	l, err := h.service.Resolve(c.Context(), song)
	if err != nil {
		return h.resolveError(c, song, err)
	}
	return c.JSON(l)
}

// GetLine returns the LRC line active at ?t= milliseconds.
func (h *Handler) GetLine(c *fiber.Ctx) error {
	song := music.NewSong(c.Query("artist"), c.Query("title"), "")
	if err := song.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	ms, err := strconv.ParseInt(c.Query("t"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "t must be a position in milliseconds"})
	}
	l, err := h.service.Resolve(c.Context(), song)
	if err != nil {
		return h.resolveError(c, song, err)
	}
	if !l.IsSynced {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "lyrics are not synced", "source": l.Source})
	}
	i, line, ok := h.service.CurrentLine(l, time.Duration(ms)*time.Millisecond)
	if !ok {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(fiber.Map{
		"index": i,
		"time":  line.Timestamp.Milliseconds(),
		"text":  line.Text,
	})
}

func (h *Handler) resolveError(c *fiber.Ctx, song music.Song, err error) error {
	if errors.Is(err, music.ErrLyricsNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	slog.Error("Failed to resolve lyrics", "song", song.String(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to resolve lyrics"})
}

// GetCached lists the cache.
func (h *Handler) GetCached(c *fiber.Ctx) error {
	entries, err := h.service.Cached(c.Context())
	if err != nil {
		slog.Error("Failed to list cache", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list cached lyrics"})
	}
	return c.JSON(entries)
}

// SearchCached runs a text search over the cache with ?q=.
func (h *Handler) SearchCached(c *fiber.Ctx) error {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "q is required"})
	}
	entries, err := h.service.SearchCache(c.Context(), q)
	if err != nil {
		slog.Error("Failed to search cache", "query", q, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to search cached lyrics"})
	}
	return c.JSON(entries)
}

// DeleteCached removes one entry by lyrics id.
func (h *Handler) DeleteCached(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.service.Forget(c.Context(), id); err != nil {
		if errors.Is(err, music.ErrCacheEntryNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "cache entry not found"})
		}
		slog.Error("Failed to delete cache entry", "id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to delete cache entry"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetProviders lists the registered providers and their capabilities.
func (h *Handler) GetProviders(c *fiber.Ctx) error {
	return c.JSON(h.service.Providers())
}

// RenderLyrics renders the lyrics page. Without a title it only shows the form.
func (h *Handler) RenderLyrics(c *fiber.Ctx) error {
	song := music.NewSong(c.Query("artist"), c.Query("title"), "")
	data := fiber.Map{
		"Artist":    song.Artist,
		"Title":     song.Title,
		"Providers": h.service.Providers(),
	}
	if song.Title == "" {
		return c.Render("lyrics", data)
	}
	l, err := h.service.Resolve(c.Context(), song)
	switch {
	case errors.Is(err, music.ErrLyricsNotFound):
		data["NotFound"] = true
	case err != nil:
		slog.Error("Failed to resolve lyrics for page", "song", song.String(), "error", err)
		data["Error"] = "Failed to resolve lyrics"
	default:
		data["Lyrics"] = l
		data["Lines"] = l.Parsed().Lines
		data["Plain"] = l.Lines()
	}
	return c.Render("lyrics", data)
}
