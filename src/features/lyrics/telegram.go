package lyrics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/contre95/soullyrics/src/music"
)

// Telegram rejects longer messages
const maxMessageLength = 4000

// TelegramHandler handles Telegram commands for the lyrics feature
type TelegramHandler struct {
	service *Service
}

// NewTelegramHandler creates a new Telegram handler for the lyrics feature
func NewTelegramHandler(service *Service) *TelegramHandler {
	return &TelegramHandler{service: service}
}

// HandleCommand processes lyrics-related Telegram commands
func (h *TelegramHandler) HandleCommand(bot *tgbotapi.BotAPI, chatID int64, command string, args string) error {
	switch command {
	case "lyrics":
		return h.handleLyrics(bot, chatID, args)
	case "cached":
		return h.handleCached(bot, chatID, args)
	case "providers":
		return h.handleProviders(bot, chatID)
	default:
		_, err := bot.Send(tgbotapi.NewMessage(chatID, "❌ Unknown lyrics command. Use /lyrics Artist - Title"))
		return err
	}
}

func (h *TelegramHandler) handleLyrics(bot *tgbotapi.BotAPI, chatID int64, args string) error {
	artist, title := parseSongArgs(args)
	if title == "" {
		_, err := bot.Send(tgbotapi.NewMessage(chatID, "Usage: /lyrics Artist - Title"))
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	l, err := h.service.ResolveRaw(ctx, artist, title)
	if errors.Is(err, music.ErrLyricsNotFound) {
		_, err = bot.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("🔍 No lyrics found for %s - %s", artist, title)))
		return err
	}
	if err != nil {
		return err
	}

	synced := "plain"
	if l.IsSynced {
		synced = "synced"
	}
	text := fmt.Sprintf("🎤 %s - %s (%s, %s)\n\n%s", artist, title, l.Source, synced, l.PlainLyrics)
	_, err = bot.Send(tgbotapi.NewMessage(chatID, truncate(text, maxMessageLength)))
	return err
}

func (h *TelegramHandler) handleCached(bot *tgbotapi.BotAPI, chatID int64, args string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		entries []*music.Lyrics
		err     error
	)
	if q := strings.TrimSpace(args); q != "" {
		entries, err = h.service.SearchCache(ctx, q)
	} else {
		entries, err = h.service.Cached(ctx)
	}
	if err != nil {
		msg := tgbotapi.NewMessage(chatID, "❌ Failed to read the lyrics cache")
		bot.Send(msg)
		return err
	}
	if len(entries) == 0 {
		msg := tgbotapi.NewMessage(chatID, "📭 *No cached lyrics*")
		msg.ParseMode = tgbotapi.ModeMarkdown
		_, err := bot.Send(msg)
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📚 Cached lyrics (%d)\n\n", len(entries))
	for _, l := range entries {
		mark := "📝"
		if l.IsSynced {
			mark = "⏱"
		}
		name := l.SongID
		if l.Title != "" {
			name = l.Artist + " - " + l.Title
		}
		fmt.Fprintf(&b, "%s %s [%s] %s\n", mark, name, l.Source, l.FetchedAt.Format("2006-01-02"))
	}
	_, err = bot.Send(tgbotapi.NewMessage(chatID, truncate(b.String(), maxMessageLength)))
	return err
}

func (h *TelegramHandler) handleProviders(bot *tgbotapi.BotAPI, chatID int64) error {
	var b strings.Builder
	b.WriteString("🔌 *Lyrics providers*\n\n")
	for _, p := range h.service.Providers() {
		state := "disabled"
		if p.Enabled {
			state = fmt.Sprintf("#%d", p.Priority)
		}
		var caps []string
		if p.Synced {
			caps = append(caps, "synced")
		}
		if p.Plain {
			caps = append(caps, "plain")
		}
		if p.Search {
			caps = append(caps, "search")
		}
		fmt.Fprintf(&b, "• *%s* (%s): %s\n", p.Name, state, strings.Join(caps, ", "))
	}
	msg := tgbotapi.NewMessage(chatID, b.String())
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := bot.Send(msg)
	return err
}

// GetCommands returns the available commands for this handler
func (h *TelegramHandler) GetCommands() map[string]string {
	return map[string]string{
		"lyrics":    "Find lyrics: /lyrics Artist - Title",
		"cached":    "List cached lyrics, optionally filtered: /cached [query]",
		"providers": "Show lyrics providers and their priority",
	}
}

// HandleCallback handles callback queries for this feature (lyrics has no callbacks)
func (h *TelegramHandler) HandleCallback(bot *tgbotapi.BotAPI, callback *tgbotapi.CallbackQuery) bool {
	return false
}

// parseSongArgs splits "Artist - Title". Without a separator the whole input is the title.
func parseSongArgs(args string) (artist, title string) {
	args = strings.TrimSpace(args)
	if a, t, ok := strings.Cut(args, " - "); ok {
		return strings.TrimSpace(a), strings.TrimSpace(t)
	}
	return "", args
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
